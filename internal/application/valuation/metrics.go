package valuation

import (
	"context"
	"time"
)

// Metrics receives valuation measurements. The telemetry package provides
// the OpenTelemetry implementation.
type Metrics interface {
	AllocationCompleted(ctx context.Context, quantity, totalCost int64, elapsed time.Duration)
	AllocationShortfall(ctx context.Context)
	ContentionObserved(ctx context.Context, op string, retried bool)
	LayersBackfilled(ctx context.Context, count int64)
	LedgerEntryPosted(ctx context.Context, entryType string)
}

// NoopMetrics discards every measurement
type NoopMetrics struct{}

func (NoopMetrics) AllocationCompleted(context.Context, int64, int64, time.Duration) {}
func (NoopMetrics) AllocationShortfall(context.Context)                              {}
func (NoopMetrics) ContentionObserved(context.Context, string, bool)                 {}
func (NoopMetrics) LayersBackfilled(context.Context, int64)                          {}
func (NoopMetrics) LedgerEntryPosted(context.Context, string)                        {}

var _ Metrics = NoopMetrics{}
