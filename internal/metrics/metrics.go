// Package metrics holds engram's internal OpenTelemetry instruments.
// No MeterProvider is registered by this package; until a caller wires one
// via otel.SetMeterProvider, every instrument here is the no-op default, so
// importing this package never requires a collector to be present.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/thebtf/engram")

var (
	searchLatencyMS, _ = meter.Float64Histogram(
		"engram.search.latency_ms",
		metric.WithDescription("Hybrid search wall-clock latency in milliseconds"),
	)
	candidateSetSize, _ = meter.Int64Histogram(
		"engram.search.candidate_set_size",
		metric.WithDescription("Count of merged vector+lexical candidates scored per hybrid search"),
	)
	vectorDegradedTotal, _ = meter.Int64Counter(
		"engram.search.vector_degraded_total",
		metric.WithDescription("Hybrid searches where the vector leg errored or was unavailable"),
	)
	queryTotal, _ = meter.Int64Counter(
		"engram.store.query_total",
		metric.WithDescription("Prepared-statement queries executed against the store"),
	)
)

// RecordSearchLatency records one hybrid search call's wall-clock duration.
func RecordSearchLatency(ctx context.Context, ms float64) {
	searchLatencyMS.Record(ctx, ms)
}

// RecordCandidateSetSize records the merged candidate count before scoring.
func RecordCandidateSetSize(ctx context.Context, n int64) {
	candidateSetSize.Record(ctx, n)
}

// RecordVectorDegraded increments the vector-leg-degraded counter.
func RecordVectorDegraded(ctx context.Context) {
	vectorDegradedTotal.Add(ctx, 1)
}

// RecordQuery increments the store query counter.
func RecordQuery(ctx context.Context) {
	queryTotal.Add(ctx, 1)
}
