// Package slab implements a lock-free fixed-size slab allocator:
// per-size-class freelists grown lazily from fixed-size pages, with
// units threaded onto the freelist at grow time and never released
// back to the OS while the allocator lives.
//
// Two allocators live here, both built on the same freelist/growth
// algorithm but with different storage backends:
//
//   - [Arena] is a generic, single-size-class node pool serving
//     queue.Unbounded's nodes. Its pages are ordinary Go-managed
//     slices ([]node.Node[T]), because a generic T may contain
//     pointers the garbage collector must be able to trace — memory
//     obtained via mmap is invisible to the Go GC, so it is unsound to
//     host arbitrary pointer-containing T there.
//   - [Facade] is a general-purpose malloc/realloc/calloc/free
//     surface maintaining a full multi-class size table. Its blocks
//     are []byte, which never contain GC-visible pointers, so Facade
//     pages are real OS virtual memory (mmap / VirtualAlloc).
//
// Growth is lock-free but not contention-free: a freelist miss grows a
// fresh page with no coordination beyond the freelist's own CAS, so
// two goroutines racing a miss may each grow a page; the surplus units
// simply join the freelist.
package slab

import (
	"sync"
	"sync/atomic"

	"github.com/huangfcn/lockfree/internal/node"
	"github.com/huangfcn/lockfree/internal/tagptr"
)

// pageUnits is the number of nodes carved from each grown page.
const pageUnits = 1024

// Arena is a lock-free, lazily-growing pool of node.Node[T], addressed
// by index: a freelist of ready units plus a page registry, growing by
// one page on a freelist miss.
//
// The page registry is published via copy-on-grow: readers dereference
// an atomic snapshot with no lock, growth copies the snapshot under
// growMu and swaps it in. Growth is rare (once per pageUnits
// allocations) so serializing it is cheap; the hot alloc/free path
// (freelist push/pop) never takes growMu.
type Arena[T any] struct {
	freeList tagptr.Atomic
	size     atomic.Int64 // live (allocated, not-yet-freed) units, advisory

	growMu sync.Mutex
	pages  atomic.Pointer[[]*[pageUnits]node.Node[T]]
}

// NewArena constructs an empty Arena. It grows on first Alloc.
func NewArena[T any]() *Arena[T] {
	a := &Arena[T]{}
	a.freeList.Store(tagptr.Nil)
	empty := make([]*[pageUnits]node.Node[T], 0)
	a.pages.Store(&empty)
	return a
}

// Len reports the advisory count of currently-allocated (un-freed)
// nodes.
func (a *Arena[T]) Len() int64 { return a.size.Load() }

func (a *Arena[T]) nodeAt(idx uint32) *node.Node[T] {
	page := idx / pageUnits
	off := idx % pageUnits
	pages := *a.pages.Load()
	return &pages[page][off]
}

func (a *Arena[T]) getNext(idx uint32) tagptr.Ref { return a.nodeAt(idx).Next.Load() }

func (a *Arena[T]) setNext(idx uint32) func(tagptr.Ref) {
	return func(r tagptr.Ref) { a.nodeAt(idx).Next.Store(r) }
}

// grow allocates one more page and threads every one of its units onto
// the freelist. Concurrent growers are tolerated: each simply
// contributes its own page's units.
func (a *Arena[T]) grow() {
	page := &[pageUnits]node.Node[T]{}

	a.growMu.Lock()
	old := *a.pages.Load()
	grown := make([]*[pageUnits]node.Node[T], len(old)+1)
	copy(grown, old)
	pageIdx := uint32(len(old))
	grown[pageIdx] = page
	a.pages.Store(&grown)
	a.growMu.Unlock()

	base := pageIdx * pageUnits
	for i := uint32(0); i < pageUnits; i++ {
		tagptr.PushLink(&a.freeList, base+i, a.setNext(base+i))
	}
}

// Alloc reserves a node and returns its index and a pointer to its
// payload slot. It grows the arena (possibly more than once, under
// racing growth) until the freelist yields a unit.
func (a *Arena[T]) Alloc() (idx uint32, val *T) {
	for {
		if i, ok := tagptr.PopLink(&a.freeList, a.getNext); ok {
			a.size.Add(1)
			n := a.nodeAt(i)
			return i, &n.Val
		}
		a.grow()
	}
}

// Get returns a pointer to the payload slot for idx, for readers that
// already hold a valid (allocated, not yet freed) index.
func (a *Arena[T]) Get(idx uint32) *T { return &a.nodeAt(idx).Val }

// Free returns idx to the freelist. idx must have come from Alloc and
// must not be in use by any other goroutine.
func (a *Arena[T]) Free(idx uint32) {
	var zero T
	a.nodeAt(idx).Val = zero
	tagptr.PushLink(&a.freeList, idx, a.setNext(idx))
	a.size.Add(-1)
}

// Next exposes the node-chain accessor queue.Unbounded needs to walk
// and relink nodes directly (a queue's head/tail/next cells are not
// simple freelist links, so it manipulates tagptr.Atomic cells on
// arena nodes itself rather than going through PushLink/PopLink).
func (a *Arena[T]) Next(idx uint32) *tagptr.Atomic { return &a.nodeAt(idx).Next }
