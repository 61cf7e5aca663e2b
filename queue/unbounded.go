package queue

import (
	"sync/atomic"

	"github.com/huangfcn/lockfree/internal/cacheline"
	"github.com/huangfcn/lockfree/internal/tagptr"
	"github.com/huangfcn/lockfree/slab"
)

// Unbounded is a lock-free MPMC FIFO backed by a [slab.Arena], which
// grows on demand, so Push never fails. Same Enqueue/Dequeue algorithm
// as [Bounded]; see that type's doc comment and package doc for the
// details.
//
// Zero value is not usable; construct with [NewUnbounded].
type Unbounded[T any] struct { //nolint:govet // betteralign:ignore
	head tagptr.Atomic
	_    cacheline.Pad
	tail tagptr.Atomic
	_    cacheline.Pad
	size atomic.Int64

	pool *slab.Arena[T]
}

// NewUnbounded constructs an empty Unbounded queue.
func NewUnbounded[T any]() *Unbounded[T] {
	pool := slab.NewArena[T]()
	sentinel, _ := pool.Alloc()
	pool.Next(sentinel).Store(tagptr.Nil)

	q := &Unbounded[T]{pool: pool}
	q.head.Store(tagptr.New(sentinel, 0))
	q.tail.Store(tagptr.New(sentinel, 0))
	return q
}

// Push enqueues value. It always succeeds; the arena grows rather than
// rejecting the call.
func (q *Unbounded[T]) Push(value T) {
	idx, val := q.pool.Alloc()
	*val = value
	q.pool.Next(idx).Store(tagptr.Nil)

	var tail tagptr.Ref
	for {
		tail = q.tail.Load()
		tailNext := q.pool.Next(tail.Index())
		next := tailNext.Load()
		if next.IsNil() {
			if tailNext.CompareAndSwap(next, tagptr.New(idx, next.Version()+1)) {
				break
			}
			continue
		}
		q.tail.CompareAndSwap(tail, tagptr.New(next.Index(), tail.Version()+1))
	}
	q.tail.CompareAndSwap(tail, tagptr.New(idx, tail.Version()+1))
	q.size.Add(1)
}

// Pop dequeues and returns the oldest live value. The second result is
// false if the queue has no live payload. Linearizable.
func (q *Unbounded[T]) Pop() (T, bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := q.pool.Next(head.Index()).Load()

		if head.Index() == tail.Index() {
			if next.IsNil() {
				var zero T
				return zero, false
			}
			q.tail.CompareAndSwap(tail, tagptr.New(next.Index(), tail.Version()+1))
			continue
		}

		value := *q.pool.Get(next.Index())
		if q.head.CompareAndSwap(head, tagptr.New(next.Index(), head.Version()+1)) {
			q.pool.Free(head.Index())
			q.size.Add(-1)
			return value, true
		}
	}
}

// Len returns an eventually-consistent approximation of the number of
// live values.
func (q *Unbounded[T]) Len() int64 { return q.size.Load() }

// IsEmpty reports whether Len() observed zero at the instant of the
// call; advisory only.
func (q *Unbounded[T]) IsEmpty() bool { return q.Len() == 0 }
