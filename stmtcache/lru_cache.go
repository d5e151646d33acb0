package stmtcache

import (
	"github.com/jackc/stmtkey"
)

// lruNode is a typed doubly-linked list node with freelist support. Nodes whose keys share a hash are chained through
// bucketNext.
type lruNode[V any] struct {
	key        *stmtkey.Key
	value      V
	prev       *lruNode[V]
	next       *lruNode[V]
	bucketNext *lruNode[V]
}

// LRUCache implements stmtkey.Cache with a Least Recently Used (LRU) cache. It is not safe for concurrent use; a
// stmtkey.Dispatcher serializes access to it.
type LRUCache[V any] struct {
	m    map[uint64]*lruNode[V]
	head *lruNode[V]

	tail     *lruNode[V]
	len      int
	cap      int
	freelist *lruNode[V]

	invalidEntries []stmtkey.Entry[V]
}

// NewLRUCache creates a new LRUCache. cap is the maximum size of the cache.
func NewLRUCache[V any](cap int) *LRUCache[V] {
	if cap < 1 {
		panic("stmtcache: cap must be at least 1")
	}

	head := &lruNode[V]{}
	tail := &lruNode[V]{}
	head.next = tail
	tail.prev = head

	return &LRUCache[V]{
		cap:  cap,
		m:    make(map[uint64]*lruNode[V], cap),
		head: head,
		tail: tail,
	}
}

// Get returns the stored key equal to k and its value.
func (c *LRUCache[V]) Get(k *stmtkey.Key) (*stmtkey.Key, V, bool) {
	node := c.find(k)
	if node == nil {
		var zero V
		return nil, zero, false
	}
	c.moveToFront(node)
	return node.key, node.value, true
}

// Put stores v under k. Put panics if k is not frozen. Put does nothing if a key equal to k already exists in the
// cache or has been invalidated and HandleInvalidated has not been called yet.
func (c *LRUCache[V]) Put(k *stmtkey.Key, v V) {
	if !k.Frozen() {
		panic("cannot store key that is not frozen")
	}

	if c.find(k) != nil {
		return
	}

	// The key may have been invalidated but not yet handled. Do not readd it to the cache.
	for _, e := range c.invalidEntries {
		if e.Key.Equal(k) {
			return
		}
	}

	if c.len == c.cap {
		c.invalidateOldest()
	}

	node := c.allocNode()
	node.key = k
	node.value = v
	c.insertAfter(c.head, node)
	c.link(node)
	c.len++
}

// Invalidate invalidates the entry for k. Does nothing if not found.
func (c *LRUCache[V]) Invalidate(k *stmtkey.Key) {
	node := c.find(k)
	if node == nil {
		return
	}
	c.invalidateNode(node)
}

// InvalidateConn invalidates every entry whose key is owned by conn.
func (c *LRUCache[V]) InvalidateConn(conn stmtkey.Conn) {
	for node := c.head.next; node != c.tail; {
		next := node.next
		if node.key.Conn() == conn {
			c.invalidateNode(node)
		}
		node = next
	}
}

// InvalidateAll invalidates all entries.
func (c *LRUCache[V]) InvalidateAll() {
	for node := c.head.next; node != c.tail; {
		next := node.next
		c.invalidEntries = append(c.invalidEntries, stmtkey.Entry[V]{Key: node.key, Value: node.value})
		c.freeNode(node)
		node = next
	}

	clear(c.m)
	c.head.next = c.tail
	c.tail.prev = c.head
	c.len = 0
}

// HandleInvalidated returns a slice of all entries invalidated since the last call to HandleInvalidated.
func (c *LRUCache[V]) HandleInvalidated() []stmtkey.Entry[V] {
	entries := c.invalidEntries
	c.invalidEntries = nil
	return entries
}

// Len returns the number of cached entries.
func (c *LRUCache[V]) Len() int {
	return c.len
}

// Cap returns the maximum number of cached entries.
func (c *LRUCache[V]) Cap() int {
	return c.cap
}

func (c *LRUCache[V]) find(k *stmtkey.Key) *lruNode[V] {
	for node := c.m[k.Hash()]; node != nil; node = node.bucketNext {
		if node.key.Equal(k) {
			return node
		}
	}
	return nil
}

func (c *LRUCache[V]) invalidateOldest() {
	node := c.tail.prev
	if node == c.head {
		return
	}
	c.invalidateNode(node)
}

func (c *LRUCache[V]) invalidateNode(node *lruNode[V]) {
	c.invalidEntries = append(c.invalidEntries, stmtkey.Entry[V]{Key: node.key, Value: node.value})
	c.unlinkBucket(node)
	c.unlink(node)
	c.len--
	c.freeNode(node)
}

// Hash bucket operations

func (c *LRUCache[V]) link(node *lruNode[V]) {
	h := node.key.Hash()
	node.bucketNext = c.m[h]
	c.m[h] = node
}

func (c *LRUCache[V]) unlinkBucket(node *lruNode[V]) {
	h := node.key.Hash()
	if c.m[h] == node {
		if node.bucketNext == nil {
			delete(c.m, h)
		} else {
			c.m[h] = node.bucketNext
		}
		return
	}

	for prev := c.m[h]; prev != nil; prev = prev.bucketNext {
		if prev.bucketNext == node {
			prev.bucketNext = node.bucketNext
			return
		}
	}
}

// List operations - sentinel nodes eliminate nil checks

func (c *LRUCache[V]) insertAfter(at, node *lruNode[V]) {
	node.prev = at
	node.next = at.next
	at.next.prev = node
	at.next = node
}

func (c *LRUCache[V]) unlink(node *lruNode[V]) {
	node.prev.next = node.next
	node.next.prev = node.prev
}

func (c *LRUCache[V]) moveToFront(node *lruNode[V]) {
	if node.prev == c.head {
		return
	}
	c.unlink(node)
	c.insertAfter(c.head, node)
}

// Node pool operations - reuse evicted nodes to avoid allocations

func (c *LRUCache[V]) allocNode() *lruNode[V] {
	if c.freelist != nil {
		node := c.freelist
		c.freelist = node.next
		node.next = nil
		node.prev = nil
		return node
	}
	return &lruNode[V]{}
}

func (c *LRUCache[V]) freeNode(node *lruNode[V]) {
	var zero V
	node.key = nil
	node.value = zero
	node.prev = nil
	node.bucketNext = nil
	node.next = c.freelist
	c.freelist = node
}
