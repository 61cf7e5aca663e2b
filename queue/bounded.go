package queue

import (
	"errors"
	"sync/atomic"

	"github.com/huangfcn/lockfree/internal/cacheline"
	"github.com/huangfcn/lockfree/internal/node"
	"github.com/huangfcn/lockfree/internal/tagptr"
)

// ErrInvalidOrder is returned by NewBounded when order is outside
// [1, 20].
var ErrInvalidOrder = errors.New("queue: order must be in [1, 20]")

// Bounded is a lock-free MPMC FIFO backed by a preallocated node array
// with an embedded freelist. Capacity is 2^order nodes, one of which is
// permanently pinned as the chain's sentinel, so at most 2^order - 1
// values may be live at once.
//
// Zero value is not usable; construct with [NewBounded].
type Bounded[T any] struct { //nolint:govet // betteralign:ignore
	head tagptr.Atomic
	_    cacheline.Pad
	tail tagptr.Atomic
	_    cacheline.Pad
	free tagptr.Atomic
	_    cacheline.Pad
	size atomic.Int64

	capacity int64
	nodes    []node.Node[T]
}

// NewBounded constructs a Bounded queue over a pool of 2^order nodes,
// so Cap() is 2^order - 1. order must be in [1, 20].
func NewBounded[T any](order int) (*Bounded[T], error) {
	if order < 1 || order > 20 {
		return nil, ErrInvalidOrder
	}
	capacity := int64(1) << uint(order)

	q := &Bounded[T]{
		capacity: capacity,
		nodes:    make([]node.Node[T], capacity),
	}
	q.free.Store(tagptr.Nil)
	for i := capacity - 1; i >= 0; i-- {
		idx := uint32(i)
		tagptr.PushLink(&q.free, idx, q.setNext(idx))
	}

	// One node bootstraps the chain as the initial sentinel; it never
	// touches the freelist again until its successor is dequeued.
	sentinel, ok := tagptr.PopLink(&q.free, q.getNext)
	if !ok {
		panic("queue: freshly built freelist yielded no sentinel")
	}
	q.nodes[sentinel].Next.Store(tagptr.Nil)
	q.head.Store(tagptr.New(sentinel, 0))
	q.tail.Store(tagptr.New(sentinel, 0))

	return q, nil
}

func (q *Bounded[T]) getNext(idx uint32) tagptr.Ref { return q.nodes[idx].Next.Load() }

func (q *Bounded[T]) setNext(idx uint32) func(tagptr.Ref) {
	return func(r tagptr.Ref) { q.nodes[idx].Next.Store(r) }
}

// Push enqueues value. It returns false if the node pool is
// exhausted — every node is either live in the chain or the current
// sentinel. Linearizable.
func (q *Bounded[T]) Push(value T) bool {
	idx, ok := tagptr.PopLink(&q.free, q.getNext)
	if !ok {
		return false
	}
	q.nodes[idx].Val = value
	q.nodes[idx].Next.Store(tagptr.Nil)

	var tail tagptr.Ref
	for {
		tail = q.tail.Load()
		next := q.nodes[tail.Index()].Next.Load()
		if next.IsNil() {
			if q.nodes[tail.Index()].Next.CompareAndSwap(next, tagptr.New(idx, next.Version()+1)) {
				break
			}
			continue
		}
		// tail is lagging behind the real last node; help it catch up
		// before retrying.
		q.tail.CompareAndSwap(tail, tagptr.New(next.Index(), tail.Version()+1))
	}
	// Best-effort: swing tail to the node we just linked. A concurrent
	// enqueuer may already have done this; failure is expected and
	// harmless.
	q.tail.CompareAndSwap(tail, tagptr.New(idx, tail.Version()+1))
	q.size.Add(1)
	return true
}

// Pop dequeues and returns the oldest live value. The second result is
// false if the queue has no live payload. Linearizable.
func (q *Bounded[T]) Pop() (T, bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := q.nodes[head.Index()].Next.Load()

		if head.Index() == tail.Index() {
			if next.IsNil() {
				var zero T
				return zero, false
			}
			// tail is lagging one node behind head; help it catch up.
			q.tail.CompareAndSwap(tail, tagptr.New(next.Index(), tail.Version()+1))
			continue
		}

		value := q.nodes[next.Index()].Val
		if q.head.CompareAndSwap(head, tagptr.New(next.Index(), head.Version()+1)) {
			oldHead := head.Index()
			var zero T
			q.nodes[oldHead].Val = zero // drop the reference; oldHead's payload was already consumed
			tagptr.PushLink(&q.free, oldHead, q.setNext(oldHead))
			q.size.Add(-1)
			return value, true
		}
	}
}

// Len returns an eventually-consistent approximation of the number of
// live values.
func (q *Bounded[T]) Len() int64 { return q.size.Load() }

// IsEmpty reports whether Len() observed zero at the instant of the
// call; advisory only.
func (q *Bounded[T]) IsEmpty() bool { return q.Len() == 0 }

// IsFull reports whether Len() observed the full capacity at the
// instant of the call; advisory only. The authoritative full signal is
// Push returning false.
func (q *Bounded[T]) IsFull() bool { return q.Len() == q.Cap() }

// Cap returns the maximum number of values that can be live at once:
// one less than the node array's size, since a node is always pinned
// as the sentinel.
func (q *Bounded[T]) Cap() int64 { return q.capacity - 1 }
