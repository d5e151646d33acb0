// Package observe records OpenTelemetry metrics for a stmtkey.Dispatcher.
package observe

import (
	"context"
	"time"

	"github.com/jackc/stmtkey"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	LookupCountName      = "stmtkey.lookup.count"
	LookupDurationName   = "stmtkey.lookup.duration_ms"
	InvalidateCountName  = "stmtkey.invalidate.count"
	AttributeKeyStrategy = "stmtkey.key_strategy"
	AttributeHit         = "stmtkey.hit"
	AttributeEvicted     = "stmtkey.evicted"
)

// Tracer implements stmtkey.LookupTracer and stmtkey.InvalidateTracer by recording metrics. It is safe for concurrent
// use.
type Tracer struct {
	lookupCount     metric.Int64Counter
	lookupDuration  metric.Float64Histogram
	invalidateCount metric.Int64Counter
}

// NewTracer creates a Tracer whose instruments are created by meter.
func NewTracer(meter metric.Meter) (*Tracer, error) {
	lookupCount, err := meter.Int64Counter(
		LookupCountName,
		metric.WithDescription("Number of statement cache key lookups"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	lookupDuration, err := meter.Float64Histogram(
		LookupDurationName,
		metric.WithDescription("Statement cache key lookup duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	invalidateCount, err := meter.Int64Counter(
		InvalidateCountName,
		metric.WithDescription("Number of statement cache entries removed"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &Tracer{
		lookupCount:     lookupCount,
		lookupDuration:  lookupDuration,
		invalidateCount: invalidateCount,
	}, nil
}

type ctxKey struct{}

type lookupData struct {
	startTime   time.Time
	keyStrategy stmtkey.KeyStrategy
}

func (t *Tracer) TraceLookupStart(ctx context.Context, _ stmtkey.Conn, data stmtkey.TraceLookupStartData) context.Context {
	return context.WithValue(ctx, ctxKey{}, &lookupData{startTime: time.Now(), keyStrategy: data.KeyStrategy})
}

func (t *Tracer) TraceLookupEnd(ctx context.Context, _ stmtkey.Conn, data stmtkey.TraceLookupEndData) {
	ld, ok := ctx.Value(ctxKey{}).(*lookupData)
	if !ok {
		return
	}

	opt := metric.WithAttributes(
		attribute.String(AttributeKeyStrategy, ld.keyStrategy.String()),
		attribute.Bool(AttributeHit, data.Hit),
	)

	t.lookupCount.Add(ctx, 1, opt)
	t.lookupDuration.Record(ctx, float64(time.Since(ld.startTime))/float64(time.Millisecond), opt)
}

func (t *Tracer) TraceInvalidate(ctx context.Context, data stmtkey.TraceInvalidateData) {
	t.invalidateCount.Add(ctx, int64(len(data.Keys)), metric.WithAttributes(attribute.Bool(AttributeEvicted, data.Evicted)))
}
