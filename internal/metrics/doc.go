// Package metrics provides lock-free counters and latency histograms for
// forgeauth observability.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically via [sync/atomic.AddUint64]. Histograms use 8 fixed buckets
// (≤5ms … +Inf). Both are allocation-free on the write path.
//
// Export (Prometheus text, OpenTelemetry) lives in metrics/export and reads
// Snapshot values.
package metrics
