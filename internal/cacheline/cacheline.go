// Package cacheline holds the padding constants shared by every
// container in this module that separates hot atomic cells onto their
// own cache lines.
package cacheline

// Size is the assumed CPU cache line size in bytes. This module
// targets x86-TSO, where 64 bytes is the standard line size.
const Size = 64

// Pad is a byte array sized to consume a full cache line. Embed it
// between two hot fields to guarantee they never share a line.
type Pad [Size]byte
