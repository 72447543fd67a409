// Package sim provides the Qjump network simulation core.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - tokenbucket.go: per-priority byte budgets refilled once per epoch
//   - host.go: admission into the per-priority egress buffers and the egress stage
//   - fabric.go: ToR and aggregation switch stages and routing modes
//   - engine.go: the epoch clock, admission worker pool and stage lifecycle
//
// ratesim.go holds the single-threaded, epoch-stepped rate limiter simulator
// that shares the TokenBuckets algorithm with the live engine.
//
// # Architecture
//
// The sim package defines the data types and pipeline stages; optional
// instrumentation lives in sub-packages:
//   - sim/trace/: admission and delivery trace records, SQLite writer
//   - sim/telemetry/: Prometheus counters fed through the Observer hooks
//
// # Key Interfaces
//
//   - Router: rack attachment of hosts and per-switch forwarding decisions
//   - Observer: goroutine-safe callbacks for generation, admission and delivery
package sim
