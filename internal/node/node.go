// Package node defines the pool node record shared by the bounded
// stack and every node-pool-backed variant of the FIFO queue: a
// tagged next-reference, a payload slot, and padding toward a cache
// line boundary.
package node

import (
	"github.com/huangfcn/lockfree/internal/cacheline"
	"github.com/huangfcn/lockfree/internal/tagptr"
)

// sizeOfAtomic is the width in bytes of a tagptr.Atomic (one uint64).
const sizeOfAtomic = 8

// Node is one fixed element of a preallocated node array. Nodes are
// never freed while the owning container lives; they only migrate
// between lists (freelist/worklist, or a queue's linked chain). Their
// indices are stable for the life of the container.
type Node[T any] struct { //nolint:govet // betteralign:ignore
	Next tagptr.Atomic
	Val  T
	// The padding here is necessarily approximate for a generic T,
	// since Go has no type-level sizeof usable in an array bound. It
	// widens small payloads toward one cache line without claiming
	// exactness for arbitrary T.
	_ [cacheline.Size - sizeOfAtomic]byte
}
