// Package spsc implements a single-producer/single-consumer ring
// buffer: two plain index cursors, each touched by exactly one
// designated caller, with no CAS on the hot path at all. Only the
// live-count is atomic; head and tail are ordinary fields because only
// the consumer ever advances head and only the producer ever advances
// tail, and the atomic count is what gives the other side's load/store
// a happens-before edge on the data slot it is about to touch.
package spsc

import (
	"errors"
	"sync/atomic"

	"github.com/huangfcn/lockfree/internal/cacheline"
)

// ErrInvalidOrder is returned by New when order is outside [1, 20].
var ErrInvalidOrder = errors.New("spsc: order must be in [1, 20]")

// Ring is a bounded single-producer/single-consumer FIFO ring buffer
// with capacity 2^order. Calling Push from more than one goroutine at
// a time, or Pop from more than one goroutine at a time, is undefined;
// exactly one producer and one consumer may call concurrently with
// each other. Zero value is not usable; construct with [New].
type Ring[T any] struct {
	nobj atomic.Uint64
	_    cacheline.Pad

	mask uint64
	head uint64 // advanced only by the consumer
	tail uint64 // advanced only by the producer
	data []T
}

// New constructs a Ring with capacity 2^order. order must be in
// [1, 20].
func New[T any](order int) (*Ring[T], error) {
	if order < 1 || order > 20 {
		return nil, ErrInvalidOrder
	}
	size := uint64(1) << uint(order)
	return &Ring[T]{
		mask: size - 1,
		data: make([]T, size),
	}, nil
}

// IsFull reports whether the ring held capacity-many live values at
// the instant of the call.
func (r *Ring[T]) IsFull() bool { return r.nobj.Load() == uint64(len(r.data)) }

// IsEmpty reports whether the ring held zero live values at the
// instant of the call.
func (r *Ring[T]) IsEmpty() bool { return r.nobj.Load() == 0 }

// Len returns an eventually-consistent approximation of the number of
// live values.
func (r *Ring[T]) Len() int64 { return int64(r.nobj.Load()) }

// Cap returns the ring's fixed capacity, 2^order.
func (r *Ring[T]) Cap() int64 { return int64(len(r.data)) }

// Push appends value. It returns false if the ring was full at the
// instant of the call. Must only be called by the single producer.
func (r *Ring[T]) Push(value T) bool {
	if r.IsFull() {
		return false
	}
	r.data[r.tail] = value
	r.tail = (r.tail + 1) & r.mask
	r.nobj.Add(1)
	return true
}

// Pop removes and returns the oldest live value. The second result is
// false if the ring was empty at the instant of the call. Must only be
// called by the single consumer.
func (r *Ring[T]) Pop() (T, bool) {
	if r.IsEmpty() {
		var zero T
		return zero, false
	}
	value := r.data[r.head]
	var zero T
	r.data[r.head] = zero // drop the reference so a popped payload is never observed again
	r.head = (r.head + 1) & r.mask
	r.nobj.Add(^uint64(0))
	return value, true
}
