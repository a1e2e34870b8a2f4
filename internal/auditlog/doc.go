// Package auditlog provides the asynchronous tamper-evident audit logger.
//
// Callers hand events to a Logger from any goroutine. Events go through a
// bounded queue to a single writer goroutine, which turns each one into a
// signed hash-chain entry, seals it into a frame of the active VeriLog file
// and applies the flush and rotation policies.
//
// Backpressure:
//
//   - block: every event may wait up to OfferTimeout for queue space
//   - drop: events are dropped when the queue is full, except that WARN and
//     ERROR events wait up to OfferTimeout when PreferReliabilityForWarnError
//     is set
//
// A failed enqueue is counted as a drop; Log never blocks longer than
// OfferTimeout.
//
// Faults: an I/O, signing or encryption failure in the writer marks the
// logger faulted. Under FaultFailFast every later Log call returns
// ErrFaulted; under FaultDropOnFault later events are counted and dropped.
//
// Rotation: once the active file reaches RotateBytes it is synced, closed,
// renamed to <prefix>-<timestamp>-<ulid>.vlog and replaced by a fresh file
// whose header anchors it to the last entry, so the chain continues across
// files.
package auditlog
