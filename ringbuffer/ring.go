// Package ringbuffer implements a bounded MPMC ring buffer: a cursor
// CAS claims a slot index, then a per-slot status CAS commits the
// claim, so a slow reader or writer never blocks a claim it hasn't
// reached yet.
//
// Decoupling the cursor advance from the payload transfer moves most
// contention off the cursors and onto the per-slot status word, which
// in the steady state is uncontended because slot ownership is already
// decided by the claim. The claim itself is a CAS rather than a bare
// fetch-add: re-validating the full/empty predicate atomically with
// the advance means a cursor can never over-run its opposite, so every
// claimed slot has a matching party on the other side and the status
// spin is bounded by that party's progress, not by the arrival of
// future callers.
//
// The cursors grow monotonically and are never masked in place; the
// slot index is cursor & (capacity-1). That keeps the full predicate
// (tail >= head+capacity) and the empty predicate (head >= tail)
// decidable on the raw counters, and tail-head is the live count.
//
// Concurrency model: MPMC. Push and Pop are both lock-free (modulo the
// bounded per-slot CAS back-off described on Push) and may be called
// concurrently from any number of goroutines.
package ringbuffer

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/huangfcn/lockfree/internal/cacheline"
)

// ErrInvalidOrder is returned by New when order is outside [1, 20].
var ErrInvalidOrder = errors.New("ringbuffer: order must be in [1, 20]")

// Per-slot status. A slot cycles empty -> filling -> full -> reading
// -> empty; the two transient states pin the slot to the single
// producer or consumer currently transferring its payload.
const (
	statusEmpty uint32 = iota
	statusFilling
	statusFull
	statusReading
)

// slot is one cache-line-sized ring cell: a status word and a payload.
// As with internal/node.Node, the padding is sized against the status
// word alone; a large T can still straddle multiple cache lines, since
// Go has no type-level sizeof to size the tail exactly.
type slot[T any] struct { //nolint:govet // betteralign:ignore
	status atomic.Uint32
	object T
	_      [cacheline.Size - 4]byte
}

// Ring is a bounded, lock-free MPMC FIFO ring buffer with capacity
// 2^order. Zero value is not usable; construct with [New].
type Ring[T any] struct { //nolint:govet // betteralign:ignore
	head atomic.Uint64
	_    cacheline.Pad
	tail atomic.Uint64
	_    cacheline.Pad

	mask  uint64
	slots []slot[T]
}

// New constructs a Ring with capacity 2^order. order must be in
// [1, 20].
func New[T any](order int) (*Ring[T], error) {
	if order < 1 || order > 20 {
		return nil, ErrInvalidOrder
	}
	capacity := uint64(1) << uint(order)
	r := &Ring[T]{
		mask:  capacity - 1,
		slots: make([]slot[T], capacity),
	}
	for i := range r.slots {
		r.slots[i].status.Store(statusEmpty)
	}
	return r, nil
}

// backoff sleeps between status-CAS retries; the claimed index's low
// bit selects a one- or two-microsecond interval so neighboring slots
// don't wake in lockstep.
func backoff(index uint64) {
	if index&1 == 0 {
		time.Sleep(1 * time.Microsecond)
	} else {
		time.Sleep(2 * time.Microsecond)
	}
}

// Push claims the next slot and publishes value into it. It returns
// false if the ring was full at the moment of a claim attempt.
//
// The status CAS after the claim can spin only against a consumer
// still reading an older generation of the same slot; once that
// consumer stores the empty status the CAS succeeds, so the back-off
// loop is bounded in expectation.
func (r *Ring[T]) Push(value T) bool {
	var claimed uint64
	for {
		tail := r.tail.Load()
		head := r.head.Load()
		// A stale head is conservative: head only grows, so the
		// predicate can reject spuriously but never admit a claim
		// beyond head+capacity.
		if tail >= head+uint64(len(r.slots)) {
			return false
		}
		if r.tail.CompareAndSwap(tail, tail+1) {
			claimed = tail
			break
		}
	}
	index := claimed & r.mask

	s := &r.slots[index]
	want := statusEmpty
	for !s.status.CompareAndSwap(want, statusFilling) {
		want = statusEmpty
		backoff(index)
	}

	s.object = value
	s.status.Store(statusFull)
	return true
}

// Pop claims and removes the oldest slot. The second result is false
// if head had caught up with tail at the moment of the claim check. A
// slot a producer has claimed but not yet filled counts as present:
// Pop claims it and waits in the status back-off until it is full.
func (r *Ring[T]) Pop() (T, bool) {
	var claimed uint64
	for {
		head := r.head.Load()
		tail := r.tail.Load()
		// A stale tail is conservative in the same way head is on the
		// push side.
		if head >= tail {
			var zero T
			return zero, false
		}
		if r.head.CompareAndSwap(head, head+1) {
			claimed = head
			break
		}
	}
	index := claimed & r.mask

	s := &r.slots[index]
	want := statusFull
	for !s.status.CompareAndSwap(want, statusReading) {
		want = statusFull
		backoff(index)
	}

	value := s.object
	var zero T
	s.object = zero // drop the reference before the slot is reusable
	s.status.Store(statusEmpty)
	return value, true
}

// Len returns an eventually-consistent approximation of the number of
// committed (pushed, not yet popped) slots.
func (r *Ring[T]) Len() int64 {
	tail := int64(r.tail.Load())
	head := int64(r.head.Load())
	if d := tail - head; d > 0 {
		return d
	}
	return 0
}

// IsEmpty reports whether head has caught up to tail at the instant of
// the call; advisory only.
func (r *Ring[T]) IsEmpty() bool { return r.head.Load() >= r.tail.Load() }

// IsFull reports whether tail has reached head+capacity at the instant
// of the call; advisory only.
func (r *Ring[T]) IsFull() bool { return r.tail.Load() >= r.head.Load()+uint64(len(r.slots)) }

// Cap returns the ring's fixed capacity, 2^order.
func (r *Ring[T]) Cap() int64 { return int64(len(r.slots)) }
