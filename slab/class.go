package slab

// Size-class geometry: three geometric bands with linear sub-steps,
// each band built as (i+1)<<shift for i in [0, count). The resulting
// class boundaries are 16..496 by 16, 512..15,872 by 512, and
// 16,384..524,288 by 16,384 — 31+31+32 classes, with no band sharing a
// boundary value with the next.
const (
	classCountSmall  = 31 // 16 B .. 496 B, 16 B steps
	classCountMedium = 31 // 512 B .. 15,872 B, 512 B steps
	classCountLarge  = 32 // 16 KiB .. 512 KiB, 16 KiB steps

	shiftSmall  = 4  // 1<<4  == 16
	shiftMedium = 9  // 1<<9  == 512
	shiftLarge  = 14 // 1<<14 == 16384

	// MaxClassSize is the largest size served from a freelist-managed
	// class. Requests above this are passed straight through to the OS,
	// page-rounded, and are not freelist-managed.
	MaxClassSize = classCountLarge << shiftLarge
)

// classSizes lists every class's unit size, ascending, built once at
// package init.
var classSizes = buildClassSizes()

func buildClassSizes() []int {
	sizes := make([]int, 0, classCountSmall+classCountMedium+classCountLarge)
	for i := 0; i < classCountSmall; i++ {
		sizes = append(sizes, (i+1)<<shiftSmall)
	}
	for i := 0; i < classCountMedium; i++ {
		sizes = append(sizes, (i+1)<<shiftMedium)
	}
	for i := 0; i < classCountLarge; i++ {
		sizes = append(sizes, (i+1)<<shiftLarge)
	}
	return sizes
}

// classFor returns the index into classSizes of the smallest class that
// can serve n bytes, and ok=false if n exceeds MaxClassSize (caller
// must fall back to a direct OS allocation).
func classFor(n int) (index int, ok bool) {
	if n <= 0 {
		n = 1
	}
	if n > MaxClassSize {
		return 0, false
	}
	// classSizes is sorted and small (94 entries); a linear scan is
	// simpler than a binary search and only runs once per alloc.
	for i, size := range classSizes {
		if n <= size {
			return i, true
		}
	}
	return 0, false
}
