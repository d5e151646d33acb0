// Package stmtkey identifies prepared statements in a pool-wide statement cache.
/*
A statement cache shared by every connection of a pool maps a statement shape plus its owning physical connection to
the prepared statement created for it. stmtkey produces the keys of that mapping and decides whether two lookups are
cache-equivalent.

Keys

A Key holds the owning Conn, the SQL text, the callable flag, the result set type and concurrency, the generated-key
column selection (by index or by name) and the optional autogenerated keys and holdability settings. Two keys are equal
when all nine fields are equal. Optional fields are represented by OptionalInt and by nil slices; unset equals unset and
never equals a set value.

Strategies

Three interchangeable strategies decide how a Key is produced for a lookup:

	KeyStrategySimple      allocates a fresh key for every lookup.
	KeyStrategyCoalescing  interns keys so every lookup of one shape returns one shared instance.
	KeyStrategyRecycling   reinitializes pooled candidate keys in place; a cache hit allocates nothing.

The strategy is chosen once, when the Dispatcher is constructed:

	cache := stmtcache.NewLRUCache[*Statement](512)
	d := stmtkey.NewDispatcher[*Statement](stmtkey.KeyStrategyRecycling, cache)

	key, stmt, hit := d.FindOrCreate(ctx, conn, &stmtkey.Descriptor{SQL: "select 1"}, newStatement)

Concurrency

A Dispatcher is safe for concurrent use. Every FindOrCreate call runs in a single critical section so a key is never
observed while it is being reinitialized. The Cache passed to a Dispatcher must only be used through that Dispatcher.

Logging and Tracing

Dispatcher lookups and invalidations can be traced with a LookupTracer and an InvalidateTracer. The tracelog package
logs them through a Logger, and adapters for common logging packages are provided in the log directory. The observe
package records OpenTelemetry metrics.
*/
package stmtkey
