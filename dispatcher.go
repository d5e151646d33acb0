package stmtkey

import (
	"context"
	"sync"
)

// Dispatcher finds or creates the keys of a statement cache shared by many connections. It is bound to one
// KeyStrategy for its whole lifetime and is safe for concurrent use.
//
// Every method runs under a single lock. The Cache given to a Dispatcher must not be used directly afterwards.
type Dispatcher[V any] struct {
	mu sync.Mutex

	keyStrategy KeyStrategy
	finder      keyFinder
	cache       Cache[V]

	// found holds the value of the last successful cache probe. Only valid while mu is held.
	found V

	retainInvalidated bool
	invalidated       []Entry[V]

	hitCount         int64
	missCount        int64
	invalidatedCount int64

	lookupTracer     LookupTracer
	invalidateTracer InvalidateTracer
}

// NewDispatcher creates a Dispatcher using s to produce keys for cache. NewDispatcher panics if s is not a valid
// KeyStrategy or cache is nil.
func NewDispatcher[V any](s KeyStrategy, cache Cache[V]) *Dispatcher[V] {
	return NewDispatcherConfig(&Config{KeyStrategy: s}, cache)
}

// NewDispatcherConfig creates a Dispatcher from config. config.StatementCacheCapacity is not used; the caller sizes
// cache. NewDispatcherConfig panics if config.KeyStrategy is not valid or cache is nil.
func NewDispatcherConfig[V any](config *Config, cache Cache[V]) *Dispatcher[V] {
	mustBeValidStrategy(config.KeyStrategy)
	if cache == nil {
		panic("stmtkey: nil cache")
	}

	d := &Dispatcher[V]{
		keyStrategy:       config.KeyStrategy,
		finder:            newKeyFinder(config.KeyStrategy),
		cache:             cache,
		retainInvalidated: config.RetainInvalidated,
		lookupTracer:      config.Tracer,
	}
	if t, ok := config.Tracer.(InvalidateTracer); ok {
		d.invalidateTracer = t
	}

	return d
}

// FindOrCreate returns the key for the statement desc on conn, the value cached for it and whether the key was already
// cached. On a miss create is called with the new key and its result is cached. create is called with the dispatcher
// lock held and must not block or call back into the Dispatcher. If create panics nothing is cached, the lock is
// released and the panic propagates to the caller.
//
// The returned key is frozen. conn must not be nil; this is not checked. desc is not retained.
func (d *Dispatcher[V]) FindOrCreate(ctx context.Context, conn Conn, desc *Descriptor, create func(*Key) V) (*Key, V, bool) {
	if d.lookupTracer != nil {
		ctx = d.lookupTracer.TraceLookupStart(ctx, conn, TraceLookupStartData{Descriptor: desc, KeyStrategy: d.keyStrategy})
	}

	k, v, hit, evicted := d.findOrCreate(conn, desc, create)

	if d.lookupTracer != nil {
		d.lookupTracer.TraceLookupEnd(ctx, conn, TraceLookupEndData{Key: k, Hit: hit})
	}
	if len(evicted) > 0 {
		d.invalidateTracer.TraceInvalidate(ctx, TraceInvalidateData{Keys: evicted, Evicted: true})
	}

	return k, v, hit
}

func (d *Dispatcher[V]) findOrCreate(conn Conn, desc *Descriptor, create func(*Key) V) (*Key, V, bool, []*Key) {
	d.mu.Lock()
	defer d.mu.Unlock()

	k, hit := d.finder.findOrCreate(conn, desc, d)
	v := d.found
	var zero V
	d.found = zero

	if hit {
		d.hitCount++
		return k, v, true, nil
	}

	v = d.createLocked(k, create)
	d.cache.Put(k, v)
	d.missCount++
	return k, v, false, d.handleInvalidatedLocked()
}

// createLocked calls create for the new key k. If create panics k never reaches the cache, so it is released from the
// strategy before the panic continues.
func (d *Dispatcher[V]) createLocked(k *Key, create func(*Key) V) V {
	created := false
	defer func() {
		if !created {
			d.finder.release(k)
		}
	}()

	v := create(k)
	created = true
	return v
}

// lookup implements keyLookup.
func (d *Dispatcher[V]) lookup(k *Key) (*Key, bool) {
	stored, v, ok := d.cache.Get(k)
	d.found = v
	return stored, ok
}

// Invalidate removes the entry for k. Does nothing if not found.
func (d *Dispatcher[V]) Invalidate(ctx context.Context, k *Key) {
	d.mu.Lock()
	d.cache.Invalidate(k)
	dropped := d.handleInvalidatedLocked()
	d.mu.Unlock()

	d.traceInvalidate(ctx, dropped)
}

// InvalidateConn removes every entry owned by conn. It is meant to be called when the physical connection closes.
func (d *Dispatcher[V]) InvalidateConn(ctx context.Context, conn Conn) {
	d.mu.Lock()
	d.cache.InvalidateConn(conn)
	dropped := d.handleInvalidatedLocked()
	d.mu.Unlock()

	d.traceInvalidate(ctx, dropped)
}

// InvalidateAll removes every entry.
func (d *Dispatcher[V]) InvalidateAll(ctx context.Context) {
	d.mu.Lock()
	d.cache.InvalidateAll()
	dropped := d.handleInvalidatedLocked()
	d.mu.Unlock()

	d.traceInvalidate(ctx, dropped)
}

func (d *Dispatcher[V]) traceInvalidate(ctx context.Context, keys []*Key) {
	if len(keys) > 0 {
		d.invalidateTracer.TraceInvalidate(ctx, TraceInvalidateData{Keys: keys})
	}
}

// HandleInvalidated returns the entries removed from the cache since the last call to HandleInvalidated. It always
// returns nil unless Config.RetainInvalidated was set.
func (d *Dispatcher[V]) HandleInvalidated() []Entry[V] {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.invalidated
	d.invalidated = nil
	return entries
}

// handleInvalidatedLocked drains the entries the cache removed and releases their keys from the strategy. It returns
// the removed keys only when an InvalidateTracer needs them.
func (d *Dispatcher[V]) handleInvalidatedLocked() []*Key {
	entries := d.cache.HandleInvalidated()
	if len(entries) == 0 {
		return nil
	}

	var keys []*Key
	if d.invalidateTracer != nil {
		keys = make([]*Key, 0, len(entries))
	}

	for _, e := range entries {
		d.finder.release(e.Key)
		if keys != nil {
			keys = append(keys, e.Key)
		}
	}
	d.invalidatedCount += int64(len(entries))

	if d.retainInvalidated {
		d.invalidated = append(d.invalidated, entries...)
	}

	return keys
}

// KeyStrategy returns the strategy the Dispatcher was created with.
func (d *Dispatcher[V]) KeyStrategy() KeyStrategy {
	return d.keyStrategy
}

// Len returns the number of cached entries.
func (d *Dispatcher[V]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache.Len()
}

// Cap returns the capacity of the cache.
func (d *Dispatcher[V]) Cap() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache.Cap()
}

// Stat returns a snapshot of the dispatcher statistics.
func (d *Dispatcher[V]) Stat() *Stat {
	d.mu.Lock()
	defer d.mu.Unlock()

	return &Stat{
		keyStrategy:      d.keyStrategy,
		hitCount:         d.hitCount,
		missCount:        d.missCount,
		invalidatedCount: d.invalidatedCount,
		len:              d.cache.Len(),
		cap:              d.cache.Cap(),
		pooled:           d.finder.pooled(),
		interned:         d.finder.interned(),
	}
}
