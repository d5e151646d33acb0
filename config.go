package stmtkey

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// DefaultStatementCacheCapacity is the statement cache capacity used when none is configured.
const DefaultStatementCacheCapacity = 512

// Config is the settings used to construct a Dispatcher. A Config must be created by ParseConfig or as a literal;
// the zero value selects KeyStrategySimple.
type Config struct {
	KeyStrategy KeyStrategy

	// StatementCacheCapacity is the maximum number of entries of the cache built by the owner of the Dispatcher.
	StatementCacheCapacity int

	// Tracer is used to trace lookups. If it also implements InvalidateTracer invalidations are traced as well.
	Tracer LookupTracer

	// RetainInvalidated keeps entries removed from the cache until HandleInvalidated is called. Owners that must
	// release resources held by cached values set it.
	RetainInvalidated bool
}

// ParseConfig builds a *Config from connString. connString is either a DSN of space separated key=value pairs or a URL
// whose query holds the same keys.
//
//	key_strategy=recycling statement_cache_capacity=256
//	stmtkey://?key_strategy=coalescing&statement_cache_capacity=1024
//
// The following environment variables are read when the corresponding key is absent from connString:
//
//	STMTKEY_KEY_STRATEGY
//	STMTKEY_STATEMENT_CACHE_CAPACITY
func ParseConfig(connString string) (*Config, error) {
	settings := defaultSettings()
	addEnvSettings(settings)

	if connString != "" {
		var err error
		if strings.Contains(connString, "://") {
			err = addURLSettings(settings, connString)
		} else {
			err = addDSNSettings(settings, connString)
		}
		if err != nil {
			return nil, &ParseConfigError{ConnString: connString, msg: "failed to parse as DSN or URL", err: err}
		}
	}

	config := &Config{}

	var err error
	config.KeyStrategy, err = ParseKeyStrategy(settings["key_strategy"])
	if err != nil {
		return nil, &ParseConfigError{ConnString: connString, msg: "invalid key_strategy", err: err}
	}

	config.StatementCacheCapacity, err = strconv.Atoi(settings["statement_cache_capacity"])
	if err != nil {
		return nil, &ParseConfigError{ConnString: connString, msg: "invalid statement_cache_capacity", err: err}
	}
	if config.StatementCacheCapacity < 1 {
		return nil, &ParseConfigError{ConnString: connString, msg: "statement_cache_capacity must be at least 1"}
	}

	return config, nil
}

func defaultSettings() map[string]string {
	return map[string]string{
		"key_strategy":             DefaultKeyStrategy.String(),
		"statement_cache_capacity": strconv.Itoa(DefaultStatementCacheCapacity),
	}
}

func addEnvSettings(settings map[string]string) {
	nameMap := map[string]string{
		"STMTKEY_KEY_STRATEGY":             "key_strategy",
		"STMTKEY_STATEMENT_CACHE_CAPACITY": "statement_cache_capacity",
	}

	for envname, realname := range nameMap {
		value := os.Getenv(envname)
		if value != "" {
			settings[realname] = value
		}
	}
}

func addURLSettings(settings map[string]string, connString string) error {
	u, err := url.Parse(connString)
	if err != nil {
		return err
	}

	for k, v := range u.Query() {
		settings[k] = v[0]
	}

	return nil
}

var dsnRegexp = regexp.MustCompile(`([a-zA-Z_]+)=((?:"[^"]+")|(?:[^ ]+))`)

func addDSNSettings(settings map[string]string, s string) error {
	m := dsnRegexp.FindAllStringSubmatch(s, -1)
	if len(m) == 0 && strings.TrimSpace(s) != "" {
		return fmt.Errorf("no key=value pairs in %q", s)
	}

	for _, b := range m {
		settings[b[1]] = strings.Trim(b[2], `"`)
	}

	return nil
}

// ParseConfigError is returned by ParseConfig.
type ParseConfigError struct {
	ConnString string
	msg        string
	err        error
}

func (e *ParseConfigError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("cannot parse `%s`: %s", e.ConnString, e.msg)
	}
	return fmt.Sprintf("cannot parse `%s`: %s (%s)", e.ConnString, e.msg, e.err.Error())
}

func (e *ParseConfigError) Unwrap() error {
	return e.err
}
