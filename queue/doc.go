// Package queue implements a Michael–Scott lock-free FIFO: two tagged
// reference cells, head and tail, chained through a sentinel node that
// always sits in front of the oldest live payload.
//
// Two variants share the exact same enqueue/dequeue algorithm,
// differing only in where nodes come from:
//
//   - [Bounded] draws nodes from a preallocated array with an embedded
//     freelist, the same shape as stack.Stack, and fails (returns false)
//     once every node is either live in the chain or acting as the
//     current sentinel.
//   - [Unbounded] draws nodes from a [slab.Arena], which grows on
//     demand, so Push never fails.
//
// Concurrency model: MPMC. Push and Pop are both lock-free and may be
// called concurrently from any number of goroutines.
//
// Pop reads a node's payload before it CASes head past that node: once
// head advances, a rival dequeuer could otherwise race to retire the
// same node before the winner has copied its value out.
package queue
