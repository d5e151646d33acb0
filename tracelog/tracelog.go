// Package tracelog provides a tracer that acts as a traditional logger.
package tracelog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/stmtkey"
	"github.com/jackc/stmtkey/pgxstmt"
)

// LogLevel represents the stmtkey logging level. See LogLevel* constants for
// possible values.
type LogLevel int

// The values for log levels are chosen such that the zero value means that no
// log level was specified.
const (
	LogLevelTrace = LogLevel(6)
	LogLevelDebug = LogLevel(5)
	LogLevelInfo  = LogLevel(4)
	LogLevelWarn  = LogLevel(3)
	LogLevelError = LogLevel(2)
	LogLevelNone  = LogLevel(1)
)

func (ll LogLevel) String() string {
	switch ll {
	case LogLevelTrace:
		return "trace"
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	case LogLevelNone:
		return "none"
	default:
		return fmt.Sprintf("invalid level %d", ll)
	}
}

// Logger is the interface used to get log output from stmtkey.
type Logger interface {
	// Log a message at the given level with data key/value pairs. data may be nil.
	Log(ctx context.Context, level LogLevel, msg string, data map[string]any)
}

// LoggerFunc is a wrapper around a function to satisfy the Logger interface
type LoggerFunc func(ctx context.Context, level LogLevel, msg string, data map[string]any)

// Log delegates the logging request to the wrapped function
func (f LoggerFunc) Log(ctx context.Context, level LogLevel, msg string, data map[string]any) {
	f(ctx, level, msg, data)
}

// LogLevelFromString converts log level string to constant
//
// Valid levels:
//
//	trace
//	debug
//	info
//	warn
//	error
//	none
func LogLevelFromString(s string) (LogLevel, error) {
	switch s {
	case "trace":
		return LogLevelTrace, nil
	case "debug":
		return LogLevelDebug, nil
	case "info":
		return LogLevelInfo, nil
	case "warn":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	case "none":
		return LogLevelNone, nil
	default:
		return 0, errors.New("invalid log level")
	}
}

const maxLoggedSQLBytes = 64

// logSQL truncates long statement text on a rune boundary.
func logSQL(sql string) string {
	if len(sql) <= maxLoggedSQLBytes {
		return sql
	}

	l := 0
	for w := 0; l < maxLoggedSQLBytes; l += w {
		_, w = utf8.DecodeRuneInString(sql[l:])
	}
	if len(sql) > l {
		return fmt.Sprintf("%s (truncated %d bytes)", sql[:l], len(sql)-l)
	}
	return sql
}

// TraceLogConfig holds the configuration for key names
type TraceLogConfig struct {
	TimeKey string
}

// DefaultTraceLogConfig returns the default configuration for TraceLog
func DefaultTraceLogConfig() *TraceLogConfig {
	return &TraceLogConfig{
		TimeKey: "time",
	}
}

// TraceLog implements stmtkey.LookupTracer, stmtkey.InvalidateTracer and pgxstmt.PrepareTracer. Logger and LogLevel
// are required. Config will be automatically initialized on the first use if nil.
//
// Cache hits are logged at LogLevelDebug. Misses, invalidations and prepares are logged at LogLevelInfo.
type TraceLog struct {
	Logger   Logger
	LogLevel LogLevel

	Config           *TraceLogConfig
	ensureConfigOnce sync.Once
}

// ensureConfig initializes the Config field with default values if it is nil.
func (tl *TraceLog) ensureConfig() {
	tl.ensureConfigOnce.Do(
		func() {
			if tl.Config == nil {
				tl.Config = DefaultTraceLogConfig()
			}
		},
	)
}

type ctxKey int

const (
	_ ctxKey = iota
	tracelogLookupCtxKey
	tracelogPrepareCtxKey
)

type traceLookupData struct {
	startTime   time.Time
	sql         string
	keyStrategy stmtkey.KeyStrategy
}

func (tl *TraceLog) TraceLookupStart(ctx context.Context, _ stmtkey.Conn, data stmtkey.TraceLookupStartData) context.Context {
	return context.WithValue(ctx, tracelogLookupCtxKey, &traceLookupData{
		startTime:   time.Now(),
		sql:         data.Descriptor.SQL,
		keyStrategy: data.KeyStrategy,
	})
}

func (tl *TraceLog) TraceLookupEnd(ctx context.Context, conn stmtkey.Conn, data stmtkey.TraceLookupEndData) {
	tl.ensureConfig()
	lookupData := ctx.Value(tracelogLookupCtxKey).(*traceLookupData)

	endTime := time.Now()
	interval := endTime.Sub(lookupData.startTime)

	lvl := LogLevelInfo
	if data.Hit {
		lvl = LogLevelDebug
	}

	if tl.shouldLog(lvl) {
		tl.log(ctx, conn, lvl, "Lookup", map[string]any{
			"sql":             logSQL(lookupData.sql),
			"hit":             data.Hit,
			"keyStrategy":     lookupData.keyStrategy.String(),
			tl.Config.TimeKey: interval,
		})
	}
}

func (tl *TraceLog) TraceInvalidate(ctx context.Context, data stmtkey.TraceInvalidateData) {
	if !tl.shouldLog(LogLevelInfo) {
		return
	}

	sqls := make([]string, 0, len(data.Keys))
	for _, k := range data.Keys {
		sqls = append(sqls, logSQL(k.SQL()))
	}

	tl.Logger.Log(ctx, LogLevelInfo, "Invalidate", map[string]any{
		"count":   len(data.Keys),
		"evicted": data.Evicted,
		"sql":     sqls,
	})
}

type tracePrepareData struct {
	startTime time.Time
	name      string
	sql       string
}

func (tl *TraceLog) TracePrepareStart(ctx context.Context, _ *pgconn.PgConn, data pgxstmt.TracePrepareStartData) context.Context {
	return context.WithValue(ctx, tracelogPrepareCtxKey, &tracePrepareData{
		startTime: time.Now(),
		name:      data.Name,
		sql:       data.SQL,
	})
}

func (tl *TraceLog) TracePrepareEnd(ctx context.Context, conn *pgconn.PgConn, data pgxstmt.TracePrepareEndData) {
	tl.ensureConfig()
	prepareData := ctx.Value(tracelogPrepareCtxKey).(*tracePrepareData)

	endTime := time.Now()
	interval := endTime.Sub(prepareData.startTime)

	if data.Err != nil {
		if tl.shouldLog(LogLevelError) {
			tl.log(ctx, conn, LogLevelError, "Prepare", map[string]any{"name": prepareData.name, "sql": logSQL(prepareData.sql), "err": data.Err, tl.Config.TimeKey: interval})
		}
		return
	}

	if tl.shouldLog(LogLevelInfo) {
		tl.log(ctx, conn, LogLevelInfo, "Prepare", map[string]any{"name": prepareData.name, "sql": logSQL(prepareData.sql), tl.Config.TimeKey: interval})
	}
}

func (tl *TraceLog) shouldLog(lvl LogLevel) bool {
	return tl.LogLevel >= lvl
}

func (tl *TraceLog) log(ctx context.Context, conn stmtkey.Conn, lvl LogLevel, msg string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}

	if conn != nil {
		data["pid"] = conn.PID()
	}

	tl.Logger.Log(ctx, lvl, msg, data)
}
