// Package bus implements the core.Bus contract as an in-process synchronous
// publish/subscribe hub with a bounded recent-event buffer.
//
// Delivery is intentionally at-most-once and process-local: the engine's
// non-goals exclude cross-process distribution and exactly-once semantics.
// Swap in a broker-backed implementation behind core.Bus if that ever
// changes; callers only depend on the interface.
package bus
