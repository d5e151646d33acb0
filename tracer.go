package stmtkey

import (
	"context"
)

// LookupTracer traces Dispatcher.FindOrCreate.
type LookupTracer interface {
	// TraceLookupStart is called at the beginning of FindOrCreate calls, before the dispatcher lock is acquired. The
	// returned context is passed to TraceLookupEnd.
	TraceLookupStart(ctx context.Context, conn Conn, data TraceLookupStartData) context.Context

	// TraceLookupEnd is called after the dispatcher lock has been released.
	TraceLookupEnd(ctx context.Context, conn Conn, data TraceLookupEndData)
}

type TraceLookupStartData struct {
	Descriptor  *Descriptor
	KeyStrategy KeyStrategy
}

type TraceLookupEndData struct {
	Key *Key
	Hit bool
}

// InvalidateTracer traces cache entries leaving the cache, whether they were evicted by FindOrCreate or removed by one
// of the Invalidate methods.
type InvalidateTracer interface {
	TraceInvalidate(ctx context.Context, data TraceInvalidateData)
}

type TraceInvalidateData struct {
	Keys []*Key

	// Evicted is true when the keys were dropped to make room for a new entry.
	Evicted bool
}
