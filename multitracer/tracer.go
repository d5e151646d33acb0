// Package multitracer provides a Tracer that can combine several tracers into one.
package multitracer

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/stmtkey"
	"github.com/jackc/stmtkey/pgxstmt"
)

// Tracer can combine several tracers into one.
// You can use New to automatically split tracers by interface.
type Tracer struct {
	LookupTracers     []stmtkey.LookupTracer
	InvalidateTracers []stmtkey.InvalidateTracer
	PrepareTracers    []pgxstmt.PrepareTracer
}

// New returns new Tracer from tracers with automatically split tracers by interface.
func New(tracers ...stmtkey.LookupTracer) *Tracer {
	var t Tracer

	for i := range tracers {
		t.LookupTracers = append(t.LookupTracers, tracers[i])

		if invalidateTracer, ok := tracers[i].(stmtkey.InvalidateTracer); ok {
			t.InvalidateTracers = append(t.InvalidateTracers, invalidateTracer)
		}

		if prepareTracer, ok := tracers[i].(pgxstmt.PrepareTracer); ok {
			t.PrepareTracers = append(t.PrepareTracers, prepareTracer)
		}
	}

	return &t
}

func (t *Tracer) TraceLookupStart(ctx context.Context, conn stmtkey.Conn, data stmtkey.TraceLookupStartData) context.Context {
	for i := range t.LookupTracers {
		ctx = t.LookupTracers[i].TraceLookupStart(ctx, conn, data)
	}

	return ctx
}

func (t *Tracer) TraceLookupEnd(ctx context.Context, conn stmtkey.Conn, data stmtkey.TraceLookupEndData) {
	for i := range t.LookupTracers {
		t.LookupTracers[i].TraceLookupEnd(ctx, conn, data)
	}
}

func (t *Tracer) TraceInvalidate(ctx context.Context, data stmtkey.TraceInvalidateData) {
	for i := range t.InvalidateTracers {
		t.InvalidateTracers[i].TraceInvalidate(ctx, data)
	}
}

func (t *Tracer) TracePrepareStart(ctx context.Context, conn *pgconn.PgConn, data pgxstmt.TracePrepareStartData) context.Context {
	for i := range t.PrepareTracers {
		ctx = t.PrepareTracers[i].TracePrepareStart(ctx, conn, data)
	}

	return ctx
}

func (t *Tracer) TracePrepareEnd(ctx context.Context, conn *pgconn.PgConn, data pgxstmt.TracePrepareEndData) {
	for i := range t.PrepareTracers {
		t.PrepareTracers[i].TracePrepareEnd(ctx, conn, data)
	}
}
