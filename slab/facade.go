package slab

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/huangfcn/lockfree/internal/tagptr"
)

// header precedes every block Facade hands out, so Free/Realloc can
// recover how the block was allocated without the caller tracking a
// size: the block's payload capacity selects the owning size class
// (or marks a direct OS allocation), and the used length drives
// Realloc's copy.
type header struct {
	cap  int32 // payload capacity of the block, excluding this header
	size int32 // caller-visible length, <= cap
}

const headerSize = int(unsafe.Sizeof(header{}))

func headerOf(raw []byte) *header {
	return (*header)(unsafe.Pointer(&raw[0]))
}

func payloadOf(raw []byte, size int) []byte {
	return raw[headerSize : headerSize+size : headerSize+size]
}

// headerBefore recovers the header and its own base address from a
// payload slice previously handed out by payloadOf. Go has no negative
// slice index, so the backward step from payload to header is done
// with unsafe.Pointer arithmetic rather than buf[-headerSize:]; the
// result stays within the same allocation payloadOf sliced forward
// from, so this is sound even though it bypasses bounds checking.
func headerBefore(buf []byte) (*header, unsafe.Pointer) {
	var base unsafe.Pointer
	if len(buf) == 0 {
		base = unsafe.Pointer(unsafe.SliceData(buf))
	} else {
		base = unsafe.Pointer(&buf[0])
	}
	rawBase := unsafe.Add(base, -headerSize)
	return (*header)(rawBase), rawBase
}

// classPool is one size class's lock-free freelist, growth, and
// OS-page bookkeeping. The raw bytes ([]byte, never GC-traced) are
// grown as real OS pages while the freelist's next-links live in an
// ordinary Go-managed side array.
//
// Indexing mirrors [Arena]: blocks and meta both grow by appending a
// pointer, never by copying existing cells, so the hot alloc/free path
// is safe to run concurrently with a rival grow.
type classPool struct {
	unitSize    int
	blkSize     int
	unitsPerBlk int

	freeList tagptr.Atomic

	growMu sync.Mutex
	blocks atomic.Pointer[[][]byte]
	meta   atomic.Pointer[[]*[]tagptr.Atomic]
}

func newClassPool(unitSize, pageSize int) *classPool {
	unitsPerBlk := pageSize / unitSize
	if unitsPerBlk < 1 {
		unitsPerBlk = 1
	}
	p := &classPool{
		unitSize:    unitSize,
		blkSize:     unitsPerBlk * unitSize,
		unitsPerBlk: unitsPerBlk,
	}
	p.freeList.Store(tagptr.Nil)
	blocks := make([][]byte, 0)
	p.blocks.Store(&blocks)
	meta := make([]*[]tagptr.Atomic, 0)
	p.meta.Store(&meta)
	return p
}

func (p *classPool) unitAt(idx uint32) []byte {
	blockIdx := idx / uint32(p.unitsPerBlk)
	off := idx % uint32(p.unitsPerBlk)
	blocks := *p.blocks.Load()
	start := int(off) * p.unitSize
	return blocks[blockIdx][start : start+p.unitSize : start+p.unitSize]
}

func (p *classPool) nextCell(idx uint32) *tagptr.Atomic {
	blockIdx := idx / uint32(p.unitsPerBlk)
	off := idx % uint32(p.unitsPerBlk)
	meta := *p.meta.Load()
	return &(*meta[blockIdx])[off]
}

func (p *classPool) getNext(idx uint32) tagptr.Ref { return p.nextCell(idx).Load() }

func (p *classPool) setNext(idx uint32) func(tagptr.Ref) {
	return func(r tagptr.Ref) { p.nextCell(idx).Store(r) }
}

// grow reserves one more OS page (via [systemMemoryAlloc]) and threads
// every unit it holds onto the freelist.
func (p *classPool) grow() error {
	raw, err := systemMemoryAlloc(p.blkSize)
	if err != nil {
		return err
	}
	metaSlice := make([]tagptr.Atomic, p.unitsPerBlk)

	p.growMu.Lock()
	oldBlocks := *p.blocks.Load()
	blocks := make([][]byte, len(oldBlocks)+1)
	copy(blocks, oldBlocks)
	blockIdx := uint32(len(oldBlocks))
	blocks[blockIdx] = raw
	p.blocks.Store(&blocks)

	oldMeta := *p.meta.Load()
	meta := make([]*[]tagptr.Atomic, len(oldMeta)+1)
	copy(meta, oldMeta)
	meta[blockIdx] = &metaSlice
	p.meta.Store(&meta)
	p.growMu.Unlock()

	base := blockIdx * uint32(p.unitsPerBlk)
	for i := 0; i < p.unitsPerBlk; i++ {
		tagptr.PushLink(&p.freeList, base+uint32(i), p.setNext(base+uint32(i)))
	}
	return nil
}

// alloc pops a unit off the freelist, growing (possibly more than once,
// under racing growth) until one is available.
func (p *classPool) alloc() ([]byte, error) {
	for {
		if idx, ok := tagptr.PopLink(&p.freeList, p.getNext); ok {
			return p.unitAt(idx), nil
		}
		if err := p.grow(); err != nil {
			return nil, err
		}
	}
}

// free returns a unit obtained from alloc back to the freelist, keyed
// by its own address rather than a separately-tracked index: the unit
// is located by its offset within the owning block. No coalescing;
// the caller is trusted to return exactly what it got.
func (p *classPool) free(base unsafe.Pointer) {
	blocks := *p.blocks.Load()
	for blockIdx, blk := range blocks {
		if len(blk) == 0 {
			continue
		}
		lo := unsafe.Pointer(&blk[0])
		diff := uintptr(base) - uintptr(lo)
		if diff < uintptr(len(blk)) {
			idx := uint32(blockIdx)*uint32(p.unitsPerBlk) + uint32(diff)/uint32(p.unitSize)
			tagptr.PushLink(&p.freeList, idx, p.setNext(idx))
			return
		}
	}
	panic("slab: free of pointer not owned by this pool")
}

// release returns every one of the pool's OS pages and resets its
// lists. Not safe to call concurrently with alloc/free; teardown only.
func (p *classPool) release() error {
	p.growMu.Lock()
	defer p.growMu.Unlock()

	var firstErr error
	blocks := *p.blocks.Load()
	for _, blk := range blocks {
		if err := systemMemoryFree(blk); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	empty := make([][]byte, 0)
	p.blocks.Store(&empty)
	emptyMeta := make([]*[]tagptr.Atomic, 0)
	p.meta.Store(&emptyMeta)
	p.freeList.Store(tagptr.Nil)
	return firstErr
}

// Facade is a general-purpose malloc/realloc/calloc/free surface: a
// table of [classPool]s covering the three-band size geometry in
// class.go, falling back to a direct OS allocation for anything above
// [MaxClassSize].
//
// A Facade is safe for concurrent use. Constructing one is the only
// startup step; [Facade.Close] is the teardown, returning every class
// page to the OS.
type Facade struct {
	pools     []*classPool
	pageSize  int
	bigAllocs atomic.Int64 // advisory count of outstanding >MaxClassSize allocations
}

// NewFacade builds a Facade with one classPool per size class,
// lazily grown on first use of that class.
func NewFacade() *Facade {
	pageSize := systemPageSize()
	f := &Facade{
		pools:    make([]*classPool, len(classSizes)),
		pageSize: pageSize,
	}
	for i, size := range classSizes {
		f.pools[i] = newClassPool(size, pageSize)
	}
	return f
}

// allocBlock obtains a raw block able to hold at least capReq payload
// bytes plus the header, from the smallest adequate class or (beyond
// [MaxClassSize]) directly from the OS. It returns the block and the
// payload capacity actually granted.
func (f *Facade) allocBlock(capReq int) (raw []byte, payloadCap int, err error) {
	classIdx, ok := classFor(capReq + headerSize)
	if !ok {
		raw, err = systemMemoryAlloc(capReq + headerSize)
		if err != nil {
			return nil, 0, err
		}
		f.bigAllocs.Add(1)
		return raw, capReq, nil
	}
	raw, err = f.pools[classIdx].alloc()
	if err != nil {
		return nil, 0, err
	}
	return raw, classSizes[classIdx] - headerSize, nil
}

// mallocSized allocates a block with at least capReq bytes of payload
// capacity and a caller-visible length of size bytes.
func (f *Facade) mallocSized(capReq, size int) ([]byte, error) {
	raw, payloadCap, err := f.allocBlock(capReq)
	if err != nil {
		return nil, err
	}
	h := headerOf(raw)
	h.cap = int32(payloadCap)
	h.size = int32(size)
	return payloadOf(raw, size), nil
}

// Malloc returns a slice of exactly n freshly-allocated bytes
// (contents unspecified, matching C malloc semantics), chosen from the
// smallest class that can hold a header plus n bytes, or obtained
// directly from the OS if that exceeds [MaxClassSize].
func (f *Facade) Malloc(n int) ([]byte, error) {
	if n < 0 {
		n = 0
	}
	return f.mallocSized(n, n)
}

// MallocAcc allocates like [Facade.Malloc] but returns the whole
// granted block: the result's length is the chosen class's full
// payload capacity, which is at least n and tells the caller exactly
// how many bytes it may use without growing.
func (f *Facade) MallocAcc(n int) ([]byte, error) {
	if n < 0 {
		n = 0
	}
	raw, payloadCap, err := f.allocBlock(n)
	if err != nil {
		return nil, err
	}
	h := headerOf(raw)
	h.cap = int32(payloadCap)
	h.size = int32(payloadCap)
	return payloadOf(raw, payloadCap), nil
}

// Calloc is Malloc with the returned bytes zeroed, matching C calloc.
func (f *Facade) Calloc(n int) ([]byte, error) {
	buf, err := f.Malloc(n)
	if err != nil {
		return nil, err
	}
	clear(buf)
	return buf, nil
}

// Realloc grows or shrinks buf (previously returned by Malloc/Calloc/
// MallocAcc/Realloc) to n bytes, preserving the overlap and leaving
// newly-added bytes unspecified, matching C realloc. A nil buf behaves
// as Malloc. When the current block's capacity already covers n the
// resize happens in place; otherwise a new block is allocated with 4x
// the requested capacity, so a steadily-growing buffer reallocates a
// logarithmic number of times.
func (f *Facade) Realloc(buf []byte, n int) ([]byte, error) {
	if buf == nil {
		return f.Malloc(n)
	}
	if n < 0 {
		n = 0
	}
	h, rawBase := headerBefore(buf)
	oldSize := int(h.size)

	if n <= int(h.cap) {
		h.size = int32(n)
		raw := unsafe.Slice((*byte)(rawBase), headerSize+int(h.cap))
		return payloadOf(raw, n), nil
	}

	newBuf, err := f.mallocSized(4*n, n)
	if err != nil {
		return nil, err
	}
	copy(newBuf, buf[:min(oldSize, n)])
	f.Free(buf)
	return newBuf, nil
}

// Free releases a block obtained from Malloc/Calloc/MallocAcc/Realloc.
// Freeing anything else, or double-freeing, is caller error
// (undefined, as with C free).
func (f *Facade) Free(buf []byte) {
	if buf == nil {
		return
	}
	h, rawBase := headerBefore(buf)
	classIdx, ok := classFor(int(h.cap) + headerSize)
	if !ok {
		f.bigAllocs.Add(-1)
		raw := unsafe.Slice((*byte)(rawBase), headerSize+int(h.cap))
		_ = systemMemoryFree(raw)
		return
	}
	f.pools[classIdx].free(rawBase)
}

// Close returns every class page to the OS and resets the pools,
// invalidating all blocks previously handed out from them. Direct OS
// allocations (above [MaxClassSize]) are not tracked and must be freed
// individually before Close. Not safe to call concurrently with any
// other method; teardown only.
func (f *Facade) Close() error {
	var firstErr error
	for _, p := range f.pools {
		if err := p.release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
