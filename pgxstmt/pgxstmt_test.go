package pgxstmt_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/stmtkey"
	"github.com/jackc/stmtkey/pgxstmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConnString(t testing.TB) string {
	connString := os.Getenv("PGX_TEST_DATABASE")
	if connString == "" {
		t.Skip("PGX_TEST_DATABASE not set")
	}
	return connString
}

func connect(ctx context.Context, t testing.TB) *pgconn.PgConn {
	conn, err := pgconn.Connect(ctx, testConnString(t))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(context.Background()) })
	return conn
}

// preparedStatementNames returns the names of the statements prepared on conn.
func preparedStatementNames(ctx context.Context, t testing.TB, conn *pgconn.PgConn) []string {
	result := conn.ExecParams(ctx, "select name from pg_prepared_statements", nil, nil, nil, nil).Read()
	require.NoError(t, result.Err)

	names := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		names = append(names, string(row[0]))
	}
	return names
}

func TestCachePrepare(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn := connect(ctx, t)
	cache := pgxstmt.New(&stmtkey.Config{KeyStrategy: stmtkey.KeyStrategyRecycling})

	desc := &stmtkey.Descriptor{SQL: "select $1::int4 + 1", ResultSetType: stmtkey.TypeForwardOnly, ResultSetConcurrency: stmtkey.ConcurReadOnly}
	sd1, err := cache.Prepare(ctx, conn, desc)
	require.NoError(t, err)
	require.Len(t, sd1.ParamOIDs, 1)

	sd2, err := cache.Prepare(ctx, conn, desc)
	require.NoError(t, err)
	require.Same(t, sd1, sd2)

	stat := cache.Stat()
	assert.EqualValues(t, 1, stat.HitCount())
	assert.EqualValues(t, 1, stat.MissCount())
	assert.Equal(t, []string{sd1.Name}, preparedStatementNames(ctx, t, conn))

	result := conn.ExecPrepared(ctx, sd1.Name, [][]byte{[]byte("41")}, nil, nil).Read()
	require.NoError(t, result.Err)
	require.Equal(t, "42", string(result.Rows[0][0]))
}

func TestCacheStatementsArePerConnection(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn1 := connect(ctx, t)
	conn2 := connect(ctx, t)
	cache := pgxstmt.New(&stmtkey.Config{KeyStrategy: stmtkey.KeyStrategyCoalescing})

	desc := &stmtkey.Descriptor{SQL: "select 1"}
	_, err := cache.Prepare(ctx, conn1, desc)
	require.NoError(t, err)
	_, err = cache.Prepare(ctx, conn2, desc)
	require.NoError(t, err)

	assert.EqualValues(t, 2, cache.Stat().MissCount())
	assert.Equal(t, 2, cache.Dispatcher().Len())
	assert.Len(t, preparedStatementNames(ctx, t, conn1), 1)
	assert.Len(t, preparedStatementNames(ctx, t, conn2), 1)
}

func TestCacheDeallocatesEvictedStatements(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn := connect(ctx, t)
	cache := pgxstmt.New(&stmtkey.Config{KeyStrategy: stmtkey.KeyStrategySimple, StatementCacheCapacity: 1})

	sd1, err := cache.Prepare(ctx, conn, &stmtkey.Descriptor{SQL: "select 1"})
	require.NoError(t, err)
	sd2, err := cache.Prepare(ctx, conn, &stmtkey.Descriptor{SQL: "select 2"})
	require.NoError(t, err)

	// select 1 was evicted by select 2 and is deallocated on the next use of conn.
	assert.ElementsMatch(t, []string{sd1.Name, sd2.Name}, preparedStatementNames(ctx, t, conn))

	sd3, err := cache.Prepare(ctx, conn, &stmtkey.Descriptor{SQL: "select 1"})
	require.NoError(t, err)
	require.NotEqual(t, sd1.Name, sd3.Name)

	// select 2 was evicted in turn and waits for the next use of conn.
	assert.ElementsMatch(t, []string{sd2.Name, sd3.Name}, preparedStatementNames(ctx, t, conn))
}

func TestCacheInvalidate(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn := connect(ctx, t)
	cache := pgxstmt.New(&stmtkey.Config{KeyStrategy: stmtkey.KeyStrategyRecycling})

	desc := &stmtkey.Descriptor{SQL: "select 1"}
	sd1, err := cache.Prepare(ctx, conn, desc)
	require.NoError(t, err)

	cache.Invalidate(ctx, conn, desc)
	require.Equal(t, 0, cache.Dispatcher().Len())

	sd2, err := cache.Prepare(ctx, conn, desc)
	require.NoError(t, err)
	require.NotEqual(t, sd1.Name, sd2.Name)
	assert.Equal(t, []string{sd2.Name}, preparedStatementNames(ctx, t, conn))
}

func TestCachePrepareErrorIsNotCached(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn := connect(ctx, t)
	cache := pgxstmt.New(&stmtkey.Config{KeyStrategy: stmtkey.KeyStrategyCoalescing})

	_, err := cache.Prepare(ctx, conn, &stmtkey.Descriptor{SQL: "selct 1"})
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, "42601", pgErr.Code)
	require.Equal(t, 0, cache.Dispatcher().Len())

	_, err = cache.Prepare(ctx, conn, &stmtkey.Descriptor{SQL: "select 1"})
	require.NoError(t, err)
}

func TestCacheConfigurePool(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(testConnString(t))
	require.NoError(t, err)
	poolConfig.MaxConns = 1

	cache := pgxstmt.New(&stmtkey.Config{KeyStrategy: stmtkey.KeyStrategyRecycling})
	cache.ConfigurePool(poolConfig)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)

	c, err := pool.Acquire(ctx)
	require.NoError(t, err)
	_, err = cache.Prepare(ctx, c.Conn().PgConn(), &stmtkey.Descriptor{SQL: "select 1"})
	require.NoError(t, err)
	c.Release()
	require.Equal(t, 1, cache.Dispatcher().Len())

	pool.Close()
	require.Equal(t, 0, cache.Dispatcher().Len())
	require.EqualValues(t, 1, cache.Stat().InvalidatedCount())
}
