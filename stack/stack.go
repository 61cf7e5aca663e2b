// Package stack implements a bounded, lock-free MPMC LIFO stack: a
// tagged-pointer Treiber stack backed by a preallocated node array,
// with an embedded freelist so steady-state operation never touches
// the general allocator.
//
// Concurrency model: MPMC. Push and Pop are both lock-free and may be
// called concurrently from any number of goroutines.
//
// Algorithm: each node lives in a fixed array for the life of the
// stack and is addressed by index rather than pointer (see
// internal/tagptr for why). A node is, at any instant, on exactly one
// of two lists: worklist (live values, LIFO order) or freelist (spare
// capacity). Push pops a node off freelist, stores the value, and
// pushes it onto worklist; Pop is the mirror image. Both list
// operations share the same link primitive, so the only hazard is the
// ABA problem on the list heads, which tagptr's (index, version)
// packing defeats.
package stack

import (
	"errors"
	"sync/atomic"

	"github.com/huangfcn/lockfree/internal/cacheline"
	"github.com/huangfcn/lockfree/internal/node"
	"github.com/huangfcn/lockfree/internal/tagptr"
)

// ErrInvalidOrder is returned by New when order is outside [1, 20].
var ErrInvalidOrder = errors.New("stack: order must be in [1, 20]")

// Stack is a bounded, lock-free MPMC LIFO stack with capacity 2^order.
// Zero value is not usable; construct with [New].
type Stack[T any] struct { //nolint:govet // betteralign:ignore
	worklist tagptr.Atomic
	_        cacheline.Pad
	freelist tagptr.Atomic
	_        cacheline.Pad
	size     atomic.Int64

	capacity int64
	nodes    []node.Node[T]
}

// New constructs a Stack with capacity 2^order. order must be in
// [1, 20].
func New[T any](order int) (*Stack[T], error) {
	if order < 1 || order > 20 {
		return nil, ErrInvalidOrder
	}
	capacity := int64(1) << uint(order)

	s := &Stack[T]{
		capacity: capacity,
		nodes:    make([]node.Node[T], capacity),
	}
	s.worklist.Store(tagptr.Nil)
	s.freelist.Store(tagptr.Nil)

	// Thread every node onto the freelist. This runs before the Stack
	// is published to any other goroutine, so the CAS inside PushLink
	// never contends.
	for i := int64(capacity) - 1; i >= 0; i-- {
		idx := uint32(i)
		tagptr.PushLink(&s.freelist, idx, s.setNext(idx))
	}

	return s, nil
}

func (s *Stack[T]) getNext(idx uint32) tagptr.Ref { return s.nodes[idx].Next.Load() }

func (s *Stack[T]) setNext(idx uint32) func(tagptr.Ref) {
	return func(r tagptr.Ref) { s.nodes[idx].Next.Store(r) }
}

// Push attempts to publish value onto the stack. It returns false if
// the freelist is exhausted, i.e. every node is already live on
// worklist. Linearizable.
func (s *Stack[T]) Push(value T) bool {
	idx, ok := tagptr.PopLink(&s.freelist, s.getNext)
	if !ok {
		return false
	}

	s.nodes[idx].Val = value

	tagptr.PushLink(&s.worklist, idx, s.setNext(idx))
	s.size.Add(1)
	return true
}

// Pop removes and returns the most recently pushed value. The second
// result is false if the stack has no live nodes. Linearizable.
func (s *Stack[T]) Pop() (T, bool) {
	idx, ok := tagptr.PopLink(&s.worklist, s.getNext)
	if !ok {
		var zero T
		return zero, false
	}

	value := s.nodes[idx].Val
	var zero T
	s.nodes[idx].Val = zero // drop the reference so a popped payload is never observed again

	tagptr.PushLink(&s.freelist, idx, s.setNext(idx))
	s.size.Add(-1)
	return value, true
}

// Len returns an eventually-consistent approximation of the number of
// live elements. Concurrent operations may make a momentary Len() lie
// by up to the number of operations in flight.
func (s *Stack[T]) Len() int64 { return s.size.Load() }

// IsEmpty reports whether Len() observed zero at the instant of the
// call; advisory only. The authoritative empty signal is Pop returning
// false.
func (s *Stack[T]) IsEmpty() bool { return s.Len() == 0 }

// IsFull reports whether Len() observed capacity at the instant of the
// call; advisory only. The authoritative full signal is Push returning
// false.
func (s *Stack[T]) IsFull() bool { return s.Len() == s.capacity }

// Cap returns the stack's fixed capacity, 2^order.
func (s *Stack[T]) Cap() int64 { return s.capacity }
