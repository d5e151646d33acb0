package stmtkey

// coalescingFinder maps every statement shape to one canonical key. A canonical key lives exactly as long as the cache
// holds it, so every key in the cache is interned and a shape that is not interned is not cached.
type coalescingFinder struct {
	buckets map[uint64][]*Key
	count   int
}

func newCoalescingFinder() *coalescingFinder {
	return &coalescingFinder{buckets: make(map[uint64][]*Key)}
}

func (f *coalescingFinder) findOrCreate(conn Conn, desc *Descriptor, l keyLookup) (*Key, bool) {
	var candidate Key
	candidate.init(conn, desc)

	if canonical := f.find(&candidate); canonical != nil {
		_, hit := l.lookup(canonical)
		return canonical, hit
	}

	canonical := new(Key)
	*canonical = candidate
	canonical.freeze()
	f.buckets[canonical.hash] = append(f.buckets[canonical.hash], canonical)
	f.count++
	return canonical, false
}

func (f *coalescingFinder) find(k *Key) *Key {
	for _, c := range f.buckets[k.hash] {
		if c.Equal(k) {
			return c
		}
	}
	return nil
}

func (f *coalescingFinder) release(k *Key) {
	bucket := f.buckets[k.hash]
	for i, c := range bucket {
		if c != k {
			continue
		}

		last := len(bucket) - 1
		bucket[i] = bucket[last]
		bucket[last] = nil
		if last == 0 {
			delete(f.buckets, k.hash)
		} else {
			f.buckets[k.hash] = bucket[:last]
		}
		f.count--
		return
	}
}

func (f *coalescingFinder) pooled() int   { return 0 }
func (f *coalescingFinder) interned() int { return f.count }
