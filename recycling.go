package stmtkey

// maxPooledCandidates bounds the candidate free list. Lookups are serialized so at most one candidate is in flight.
const maxPooledCandidates = 2

// recyclingFinder probes the cache with candidates taken from a free list. A candidate that hits goes back to the free
// list. A candidate that misses is frozen, handed to the cache and replaced by a new one. Frozen keys are never
// returned to the free list, even after the cache drops them.
type recyclingFinder struct {
	free []*Key
}

func newRecyclingFinder() *recyclingFinder {
	f := &recyclingFinder{free: make([]*Key, 0, maxPooledCandidates)}
	f.free = append(f.free, new(Key))
	return f
}

func (f *recyclingFinder) findOrCreate(conn Conn, desc *Descriptor, l keyLookup) (*Key, bool) {
	candidate := f.take()
	candidate.init(conn, desc)

	if stored, hit := l.lookup(candidate); hit {
		candidate.reset()
		f.put(candidate)
		return stored, true
	}

	candidate.freeze()
	f.put(new(Key))
	return candidate, false
}

func (f *recyclingFinder) take() *Key {
	n := len(f.free)
	if n == 0 {
		return new(Key)
	}

	k := f.free[n-1]
	f.free[n-1] = nil
	f.free = f.free[:n-1]
	return k
}

func (f *recyclingFinder) put(k *Key) {
	if assertionsEnabled && k.state != keyNascent {
		panic("stmtkey: pooling key in state " + k.state.String())
	}

	if len(f.free) < maxPooledCandidates {
		f.free = append(f.free, k)
	}
}

func (f *recyclingFinder) release(*Key) {}
func (f *recyclingFinder) pooled() int   { return len(f.free) }
func (f *recyclingFinder) interned() int { return 0 }
