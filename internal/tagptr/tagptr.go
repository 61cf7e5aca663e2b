// Package tagptr implements the tagged-reference primitive shared by
// the pool-backed containers in this module: a (index, version) pair
// packed into one uint64 and updated with a single compare-and-swap.
//
// The version half is the ABA defense. Every successful update to a
// cell bumps the version by one, so a CAS prepared against a stale
// read can never succeed just because the index half happens to
// repeat. Containers built on this package (stack, queue) preallocate
// their nodes in arrays and reference them by index, never by address,
// which is why a 64-bit CAS suffices where a pointer-based design
// would need a 128-bit one.
package tagptr

import "sync/atomic"

// NilIndex is the sentinel index representing "no node", the
// tagged-reference equivalent of a null pointer.
const NilIndex = ^uint32(0)

// Ref is a packed (index, version) pair. The version increments by one
// on every successful atomic update to the cell holding it; two reads
// observing the same Ref value are guaranteed to have seen no
// completed modification of that cell in between.
type Ref uint64

// Nil is the Ref equivalent of a null tagged pointer, version zero.
const Nil Ref = Ref(uint64(NilIndex))

// New packs an index and version into a Ref.
func New(index, version uint32) Ref {
	return Ref(uint64(version)<<32 | uint64(index))
}

// Index returns the packed node index, or NilIndex if this Ref is nil.
func (r Ref) Index() uint32 { return uint32(r) }

// Version returns the packed version counter.
func (r Ref) Version() uint32 { return uint32(r >> 32) }

// IsNil reports whether this Ref points at no node.
func (r Ref) IsNil() bool { return r.Index() == NilIndex }

// bumped returns the Ref that should replace r after one more
// successful update to the cell holding it: new index, version
// advanced by one.
func (r Ref) bumped(index uint32) Ref {
	return New(index, r.Version()+1)
}

// Atomic is an atomically-updated Ref cell: a worklist/freelist head
// (stack), or a queue's head/tail/node-next field.
type Atomic struct {
	v atomic.Uint64
}

// Load reads the current Ref.
func (a *Atomic) Load() Ref {
	return Ref(a.v.Load())
}

// Store unconditionally sets the Ref, e.g. during construction.
func (a *Atomic) Store(r Ref) {
	a.v.Store(uint64(r))
}

// CompareAndSwap atomically updates the cell from old to new. A
// successful CompareAndSwap is the linearization point of every
// push/pop built on this package.
func (a *Atomic) CompareAndSwap(old, new Ref) bool {
	return a.v.CompareAndSwap(uint64(old), uint64(new))
}

// PushLink publishes idx onto the front of the list rooted at head,
// linking it ahead of whatever head currently references. setNext must
// store the given Ref into idx's own next field; it is called once per
// CAS attempt, since idx is exclusively owned by the calling goroutine
// until the CAS commits it.
func PushLink(head *Atomic, idx uint32, setNext func(next Ref)) {
	for {
		old := head.Load()
		setNext(old)
		if head.CompareAndSwap(old, old.bumped(idx)) {
			return
		}
	}
}

// PopLink detaches and returns the node index at the front of the list
// rooted at head, or (0, false) if the list is empty. getNext reads
// idx's own next field (the Ref it was linked with at push time).
func PopLink(head *Atomic, getNext func(idx uint32) Ref) (uint32, bool) {
	for {
		old := head.Load()
		if old.IsNil() {
			return 0, false
		}
		next := getNext(old.Index())
		if head.CompareAndSwap(old, old.bumped(next.Index())) {
			return old.Index(), true
		}
	}
}
