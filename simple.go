package stmtkey

// simpleFinder allocates a new key for every lookup.
type simpleFinder struct{}

func (simpleFinder) findOrCreate(conn Conn, desc *Descriptor, l keyLookup) (*Key, bool) {
	k := NewKey(conn, desc)
	_, hit := l.lookup(k)
	return k, hit
}

func (simpleFinder) release(*Key)  {}
func (simpleFinder) pooled() int   { return 0 }
func (simpleFinder) interned() int { return 0 }
