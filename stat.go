package stmtkey

// Stat is a snapshot of Dispatcher statistics.
type Stat struct {
	keyStrategy      KeyStrategy
	hitCount         int64
	missCount        int64
	invalidatedCount int64
	len              int
	cap              int
	pooled           int
	interned         int
}

// KeyStrategy returns the strategy of the dispatcher.
func (s *Stat) KeyStrategy() KeyStrategy { return s.keyStrategy }

// HitCount returns the cumulative count of lookups that found an existing entry.
func (s *Stat) HitCount() int64 { return s.hitCount }

// MissCount returns the cumulative count of lookups that created a new entry.
func (s *Stat) MissCount() int64 { return s.missCount }

// InvalidatedCount returns the cumulative count of entries removed from the cache, including evictions.
func (s *Stat) InvalidatedCount() int64 { return s.invalidatedCount }

// Len returns the number of cached entries.
func (s *Stat) Len() int { return s.len }

// Cap returns the capacity of the cache.
func (s *Stat) Cap() int { return s.cap }

// PooledCandidates returns the number of idle candidate keys held by KeyStrategyRecycling.
func (s *Stat) PooledCandidates() int { return s.pooled }

// InternedKeys returns the number of canonical keys held by KeyStrategyCoalescing.
func (s *Stat) InternedKeys() int { return s.interned }
