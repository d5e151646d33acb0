// Package pgxstmt is a prepared statement cache shared by every connection of a pgxpool.Pool.
//
// Statements are identified by stmtkey keys, so one statement shape prepared on two connections is cached twice, once
// per connection. Statements are prepared on the server lazily, after the key lookup, so the dispatcher lock is never
// held during network I/O.
package pgxstmt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/stmtkey"
	"github.com/jackc/stmtkey/stmtcache"
)

// Statement is a cached statement. It is prepared on its connection the first time it is used.
type Statement struct {
	key  *stmtkey.Key
	name string

	// prepareMux serializes server round trips. It is held across network I/O.
	prepareMux sync.Mutex

	// stateMux guards sd and released. It is never held across network I/O.
	stateMux sync.Mutex
	sd       *pgconn.StatementDescription
	released bool
}

var statementCount uint64

// newStatement names each statement uniquely so a statement that left the cache and waits to be deallocated never
// shares its name with a newer statement of the same shape.
func newStatement(k *stmtkey.Key) *Statement {
	n := atomic.AddUint64(&statementCount, 1)
	return &Statement{key: k, name: fmt.Sprintf("%s_%d", stmtcache.StatementName(k), n)}
}

// Key returns the key of the statement.
func (s *Statement) Key() *stmtkey.Key { return s.key }

// Name returns the server-side name of the statement.
func (s *Statement) Name() string { return s.name }

// Description returns the statement description or nil if the statement has not been prepared yet.
func (s *Statement) Description() *pgconn.StatementDescription {
	s.stateMux.Lock()
	defer s.stateMux.Unlock()
	return s.sd
}

// markReleased records that s left the cache. It reports whether s is already prepared on the server, in which case
// the caller must deallocate it.
func (s *Statement) markReleased() bool {
	s.stateMux.Lock()
	defer s.stateMux.Unlock()
	s.released = true
	return s.sd != nil
}

// setDescription stores the description of the prepared statement. It reports whether s already left the cache, in
// which case the caller must deallocate it.
func (s *Statement) setDescription(sd *pgconn.StatementDescription) bool {
	s.stateMux.Lock()
	defer s.stateMux.Unlock()
	s.sd = sd
	return s.released
}

// prepare prepares s on conn unless it already is. released is true when s left the cache before the server accepted
// it; the statement is then prepared but owned by no cache entry.
func (s *Statement) prepare(ctx context.Context, conn *pgconn.PgConn, tracer PrepareTracer) (sd *pgconn.StatementDescription, released bool, err error) {
	s.prepareMux.Lock()
	defer s.prepareMux.Unlock()

	if cached := s.Description(); cached != nil {
		return cached, false, nil
	}

	if tracer != nil {
		ctx = tracer.TracePrepareStart(ctx, conn, TracePrepareStartData{Name: s.name, SQL: s.key.SQL()})
	}

	sd, err = conn.Prepare(ctx, s.name, s.key.SQL(), nil)

	if tracer != nil {
		tracer.TracePrepareEnd(ctx, conn, TracePrepareEndData{Err: err})
	}

	if err != nil {
		return nil, false, err
	}

	return sd, s.setDescription(sd), nil
}

// Cache is a prepared statement cache shared by many connections. It is safe for concurrent use, but each
// *pgconn.PgConn must only be used by one goroutine at a time, as usual.
type Cache struct {
	d             *stmtkey.Dispatcher[*Statement]
	prepareTracer PrepareTracer

	pendingMux sync.Mutex
	// pending holds the names of statements that left the cache but are still prepared on their connection.
	pending map[*pgconn.PgConn][]string
}

// New creates a Cache from config. config.Tracer is also used as a PrepareTracer if it implements it.
func New(config *stmtkey.Config) *Cache {
	capacity := config.StatementCacheCapacity
	if capacity == 0 {
		capacity = stmtkey.DefaultStatementCacheCapacity
	}

	dispatcherConfig := *config
	dispatcherConfig.RetainInvalidated = true

	c := &Cache{
		d:       stmtkey.NewDispatcherConfig[*Statement](&dispatcherConfig, stmtcache.NewLRUCache[*Statement](capacity)),
		pending: make(map[*pgconn.PgConn][]string),
	}
	if t, ok := config.Tracer.(PrepareTracer); ok {
		c.prepareTracer = t
	}

	return c
}

// Prepare returns the description of the statement desc on conn, preparing it on the server if it is not cached.
// Statements that previously left the cache are deallocated from conn first. The returned description stays valid at
// least until the next call to Prepare with conn.
func (c *Cache) Prepare(ctx context.Context, conn *pgconn.PgConn, desc *stmtkey.Descriptor) (*pgconn.StatementDescription, error) {
	err := c.deallocatePending(ctx, conn)
	if err != nil {
		return nil, err
	}

	_, stmt, _ := c.d.FindOrCreate(ctx, conn, desc, newStatement)
	sd, err := c.prepareStatement(ctx, conn, stmt)
	if err != nil {
		// Do not keep a statement the server rejected.
		c.d.Invalidate(ctx, stmt.key)
		return nil, err
	}

	return sd, nil
}

// prepareStatement prepares stmt on conn. A statement that left the cache while it was being prepared is queued for
// deallocation like any other dropped statement.
func (c *Cache) prepareStatement(ctx context.Context, conn *pgconn.PgConn, stmt *Statement) (*pgconn.StatementDescription, error) {
	sd, released, err := stmt.prepare(ctx, conn, c.prepareTracer)
	if err != nil {
		return nil, err
	}

	if released {
		c.pendingMux.Lock()
		c.pending[conn] = append(c.pending[conn], stmt.name)
		c.pendingMux.Unlock()
	}

	return sd, nil
}

// Invalidate removes the statement desc on conn from the cache. It is deallocated on the next call to Prepare with
// conn.
func (c *Cache) Invalidate(ctx context.Context, conn *pgconn.PgConn, desc *stmtkey.Descriptor) {
	c.d.Invalidate(ctx, stmtkey.NewKey(conn, desc))
}

// InvalidateConn removes every statement of conn from the cache without deallocating them. Call it when conn is about
// to close.
func (c *Cache) InvalidateConn(ctx context.Context, conn *pgconn.PgConn) {
	c.d.InvalidateConn(ctx, conn)
	c.collectInvalidated()

	c.pendingMux.Lock()
	delete(c.pending, conn)
	c.pendingMux.Unlock()
}

// collectInvalidated queues the statements that left the cache for deallocation. A statement that is not prepared yet
// is queued by prepareStatement once the server accepts it.
func (c *Cache) collectInvalidated() {
	entries := c.d.HandleInvalidated()
	if len(entries) == 0 {
		return
	}

	type pendingStatement struct {
		conn *pgconn.PgConn
		name string
	}
	statements := make([]pendingStatement, 0, len(entries))
	for _, e := range entries {
		if !e.Value.markReleased() {
			continue
		}
		statements = append(statements, pendingStatement{conn: e.Key.Conn().(*pgconn.PgConn), name: e.Value.name})
	}

	c.pendingMux.Lock()
	defer c.pendingMux.Unlock()

	for _, ps := range statements {
		if ps.conn.IsClosed() {
			continue
		}
		c.pending[ps.conn] = append(c.pending[ps.conn], ps.name)
	}
}

func (c *Cache) deallocatePending(ctx context.Context, conn *pgconn.PgConn) error {
	c.collectInvalidated()

	c.pendingMux.Lock()
	names := c.pending[conn]
	delete(c.pending, conn)
	c.pendingMux.Unlock()

	for i, name := range names {
		err := conn.Deallocate(ctx, name)
		if err != nil {
			c.pendingMux.Lock()
			c.pending[conn] = append(c.pending[conn], names[i+1:]...)
			c.pendingMux.Unlock()
			return fmt.Errorf("failed to deallocate %s: %w", name, err)
		}
	}

	return nil
}

// Dispatcher returns the key dispatcher of the cache.
func (c *Cache) Dispatcher() *stmtkey.Dispatcher[*Statement] {
	return c.d
}

// Stat returns a snapshot of the cache statistics.
func (c *Cache) Stat() *stmtkey.Stat {
	return c.d.Stat()
}

// ConfigurePool makes c forget the statements of every connection config's pool closes.
func (c *Cache) ConfigurePool(config *pgxpool.Config) {
	beforeClose := config.BeforeClose
	config.BeforeClose = func(conn *pgx.Conn) {
		if beforeClose != nil {
			beforeClose(conn)
		}
		c.InvalidateConn(context.Background(), conn.PgConn())
	}
}
