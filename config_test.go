package stmtkey_test

import (
	"errors"
	"testing"

	"github.com/jackc/stmtkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name       string
		connString string
		env        map[string]string
		config     *stmtkey.Config
	}{
		{
			name:       "defaults",
			connString: "",
			config:     &stmtkey.Config{KeyStrategy: stmtkey.DefaultKeyStrategy, StatementCacheCapacity: stmtkey.DefaultStatementCacheCapacity},
		},
		{
			name:       "DSN",
			connString: "key_strategy=coalescing statement_cache_capacity=64",
			config:     &stmtkey.Config{KeyStrategy: stmtkey.KeyStrategyCoalescing, StatementCacheCapacity: 64},
		},
		{
			name:       "DSN with quoted value",
			connString: `key_strategy="simple"`,
			config:     &stmtkey.Config{KeyStrategy: stmtkey.KeyStrategySimple, StatementCacheCapacity: stmtkey.DefaultStatementCacheCapacity},
		},
		{
			name:       "URL",
			connString: "stmtkey://?key_strategy=value_identity&statement_cache_capacity=8",
			config:     &stmtkey.Config{KeyStrategy: stmtkey.KeyStrategyRecycling, StatementCacheCapacity: 8},
		},
		{
			name:       "environment",
			connString: "",
			env:        map[string]string{"STMTKEY_KEY_STRATEGY": "memory_coalesced", "STMTKEY_STATEMENT_CACHE_CAPACITY": "32"},
			config:     &stmtkey.Config{KeyStrategy: stmtkey.KeyStrategyCoalescing, StatementCacheCapacity: 32},
		},
		{
			name:       "conn string overrides environment",
			connString: "key_strategy=simple",
			env:        map[string]string{"STMTKEY_KEY_STRATEGY": "coalescing"},
			config:     &stmtkey.Config{KeyStrategy: stmtkey.KeyStrategySimple, StatementCacheCapacity: stmtkey.DefaultStatementCacheCapacity},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STMTKEY_KEY_STRATEGY", "")
			t.Setenv("STMTKEY_STATEMENT_CACHE_CAPACITY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			config, err := stmtkey.ParseConfig(tt.connString)
			require.NoError(t, err)
			assert.Equal(t, tt.config, config)
		})
	}
}

func TestParseConfigErrors(t *testing.T) {
	t.Setenv("STMTKEY_KEY_STRATEGY", "")
	t.Setenv("STMTKEY_STATEMENT_CACHE_CAPACITY", "")

	for _, connString := range []string{
		"key_strategy=lru",
		"statement_cache_capacity=many",
		"statement_cache_capacity=0",
		"recycling",
	} {
		_, err := stmtkey.ParseConfig(connString)
		require.Error(t, err, connString)

		var pce *stmtkey.ParseConfigError
		require.True(t, errors.As(err, &pce), connString)
		assert.Equal(t, connString, pce.ConnString)
	}
}

func TestParseKeyStrategy(t *testing.T) {
	t.Parallel()

	for _, s := range allKeyStrategies {
		parsed, err := stmtkey.ParseKeyStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	parsed, err := stmtkey.ParseKeyStrategy(" Recycling ")
	require.NoError(t, err)
	assert.Equal(t, stmtkey.KeyStrategyRecycling, parsed)

	_, err = stmtkey.ParseKeyStrategy("")
	require.Error(t, err)

	assert.Equal(t, "invalid key strategy 9", stmtkey.KeyStrategy(9).String())
}
