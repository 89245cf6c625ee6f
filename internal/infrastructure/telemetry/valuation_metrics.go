package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	attrOperation = attribute.Key("valuation.operation")
	attrRetried   = attribute.Key("valuation.retried")
	attrEntryType = attribute.Key("ledger.entry_type")
)

// allocationBuckets are latency boundaries in seconds for one allocation transaction.
var allocationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// ValuationMetrics records cost layer and ledger measurements
type ValuationMetrics struct {
	allocations        metric.Int64Counter
	allocatedUnits     metric.Int64Counter
	allocatedCost      metric.Int64Counter
	allocationDuration metric.Float64Histogram
	shortfalls         metric.Int64Counter
	contentions        metric.Int64Counter
	backfilledLayers   metric.Int64Counter
	ledgerEntries      metric.Int64Counter
}

// NewValuationMetrics registers the valuation instruments on meter
func NewValuationMetrics(meter metric.Meter) (*ValuationMetrics, error) {
	m := &ValuationMetrics{}

	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
		unit   string
	}{
		{&m.allocations, "valuation_allocations_total", "Completed FIFO allocations", "{allocation}"},
		{&m.allocatedUnits, "valuation_allocated_units_total", "Units drawn from cost layers", "{unit}"},
		{&m.allocatedCost, "valuation_allocated_cost_total", "Cost of goods drawn from cost layers in minor currency units", "{amount}"},
		{&m.shortfalls, "valuation_allocation_shortfalls_total", "Allocations rejected for insufficient layers", "{allocation}"},
		{&m.contentions, "valuation_contentions_total", "Lock or serialization conflicts", "{conflict}"},
		{&m.backfilledLayers, "valuation_backfilled_layers_total", "Synthetic opening layers created", "{layer}"},
		{&m.ledgerEntries, "valuation_ledger_entries_total", "Ledger entries appended", "{entry}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
		*c.target = counter
	}

	hist, err := meter.Float64Histogram("valuation_allocation_duration_seconds",
		metric.WithDescription("Time spent inside one allocation transaction"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(allocationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create allocation histogram: %w", err)
	}
	m.allocationDuration = hist
	return m, nil
}

func (m *ValuationMetrics) AllocationCompleted(ctx context.Context, quantity, totalCost int64, elapsed time.Duration) {
	m.allocations.Add(ctx, 1)
	m.allocatedUnits.Add(ctx, quantity)
	m.allocatedCost.Add(ctx, totalCost)
	m.allocationDuration.Record(ctx, elapsed.Seconds())
}

func (m *ValuationMetrics) AllocationShortfall(ctx context.Context) {
	m.shortfalls.Add(ctx, 1)
}

func (m *ValuationMetrics) ContentionObserved(ctx context.Context, op string, retried bool) {
	m.contentions.Add(ctx, 1, metric.WithAttributes(attrOperation.String(op), attrRetried.Bool(retried)))
}

func (m *ValuationMetrics) LayersBackfilled(ctx context.Context, count int64) {
	if count > 0 {
		m.backfilledLayers.Add(ctx, count)
	}
}

func (m *ValuationMetrics) LedgerEntryPosted(ctx context.Context, entryType string) {
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(attrEntryType.String(entryType)))
}
