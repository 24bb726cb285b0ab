// Package pipeline provides lazy, pull-based streams and the operators
// that bound them.
//
// A Pipeline does nothing until it is pulled via Collect, Drain, ForEach or
// Iter. Plain stages (Map, FlatMap, Filter, Tap, Concat, Throttle, Count,
// Until) pull from the previous stage on the caller's goroutine. Bridge-backed
// stages (Multiplex, Duration, Timeout, Buffer) run their sources on
// background goroutines that feed a Queue, so the consumer can wait with a
// timeout instead of blocking inside a device read.
//
// # Queue bridge
//
// Send drains an Iterator into a Queue and finishes with exactly one
// EndOfStream item; Receive turns a Queue back into an Iterator that ends at
// that sentinel. Cancelling the context passed to Send is the shutdown
// signal: Send stops after its current push and does not send the sentinel.
// A failing source is forwarded as a Failure item and surfaces as the error
// of the consumer's Next.
//
// # Bounded iteration
//
//   - Count: at most N values, never pulling the N+1th
//   - Until: up to and including the first value matching a predicate
//   - Duration: values until a wall-clock budget is spent
//   - Timeout: values until the source goes quiet
//
// # Cleanup
//
// Closing a bridge-backed iterator cancels its producers and waits for them
// to return. A producer blocked in a read that ignores its context delays
// Close until that read returns.
package pipeline
