// Package metrics provides lock-free counters and latency histograms for
// goAuthClient observability.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically via [sync/atomic.AddUint64]. Histograms use 8 fixed buckets
// (≤10ms … +Inf), sized for network round-trips. Both are allocation-free on
// the write path.
//
// # Architecture boundaries
//
// This package owns metric storage and snapshot creation. Metric export
// (Prometheus, OTel) lives in metrics/export/ and reads Snapshot values.
//
// # What this package must NOT do
//
//   - Perform I/O or network calls.
//   - Import goAuthClient or any sibling package.
//   - Expose global metric registries.
package metrics
