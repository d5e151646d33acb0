package stmtkey

import (
	"fmt"
	"strings"
)

// KeyStrategy selects how a Dispatcher produces keys.
type KeyStrategy int

const (
	// KeyStrategySimple allocates a new key for every lookup and relies on Key.Equal alone.
	KeyStrategySimple KeyStrategy = iota

	// KeyStrategyCoalescing interns keys. Every lookup of one statement shape on one connection returns the same *Key
	// for as long as the cache holds it.
	KeyStrategyCoalescing

	// KeyStrategyRecycling probes the cache with pooled candidate keys that are reinitialized in place. A cache hit
	// allocates nothing. A miss freezes the candidate and publishes it.
	KeyStrategyRecycling
)

// DefaultKeyStrategy is used by ParseConfig when no strategy is configured.
const DefaultKeyStrategy = KeyStrategyRecycling

func (s KeyStrategy) String() string {
	switch s {
	case KeyStrategySimple:
		return "simple"
	case KeyStrategyCoalescing:
		return "coalescing"
	case KeyStrategyRecycling:
		return "recycling"
	default:
		return fmt.Sprintf("invalid key strategy %d", int(s))
	}
}

// ParseKeyStrategy converts a strategy name to a KeyStrategy.
//
// Valid names:
//
//	simple
//	coalescing (or memory_coalesced)
//	recycling (or value_identity)
func ParseKeyStrategy(s string) (KeyStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simple":
		return KeyStrategySimple, nil
	case "coalescing", "memory_coalesced":
		return KeyStrategyCoalescing, nil
	case "recycling", "value_identity":
		return KeyStrategyRecycling, nil
	default:
		return 0, fmt.Errorf("invalid key strategy: %q", s)
	}
}

func mustBeValidStrategy(s KeyStrategy) {
	if s != KeyStrategySimple && s != KeyStrategyCoalescing && s != KeyStrategyRecycling {
		panic(fmt.Sprintf("stmtkey: %v", s))
	}
}

// keyLookup probes the cache for a key equal to k.
type keyLookup interface {
	lookup(k *Key) (stored *Key, ok bool)
}

// keyFinder is implemented by each strategy. All methods are called with the Dispatcher lock held.
type keyFinder interface {
	// findOrCreate returns the key to use for conn and desc and whether the cache already holds it. A key returned with
	// false is frozen and will be put in the cache by the caller.
	findOrCreate(conn Conn, desc *Descriptor, l keyLookup) (*Key, bool)

	// release is called once the cache no longer holds k.
	release(k *Key)

	// pooled returns the number of idle recycled candidates.
	pooled() int

	// interned returns the number of canonical keys.
	interned() int
}

func newKeyFinder(s KeyStrategy) keyFinder {
	switch s {
	case KeyStrategySimple:
		return simpleFinder{}
	case KeyStrategyCoalescing:
		return newCoalescingFinder()
	case KeyStrategyRecycling:
		return newRecyclingFinder()
	}
	panic("unreachable")
}
