package stmtkey

// Entry is a key and the value cached for it.
type Entry[V any] struct {
	Key   *Key
	Value V
}

// Cache is the container that stores statement values by Key. A Cache is owned by one Dispatcher and is not required
// to be safe for concurrent use.
type Cache[V any] interface {
	// Get returns the stored key equal to k and its value. The returned key is the instance passed to Put, not k.
	Get(k *Key) (*Key, V, bool)

	// Put stores v under k. Put does nothing if a key equal to k is already present or was invalidated and
	// HandleInvalidated has not been called since.
	Put(k *Key, v V)

	// Invalidate removes the entry for k. Does nothing if not found.
	Invalidate(k *Key)

	// InvalidateConn removes every entry owned by conn.
	InvalidateConn(conn Conn)

	// InvalidateAll removes every entry.
	InvalidateAll()

	// HandleInvalidated returns every entry removed since the last call to HandleInvalidated, including entries evicted
	// to make room, and forgets them.
	HandleInvalidated() []Entry[V]

	// Len returns the number of cached entries.
	Len() int

	// Cap returns the maximum number of cached entries.
	Cap() int
}
