package pmm

import (
	"github.com/nimbus-os/nimbus/kernel"
	"github.com/nimbus-os/nimbus/kernel/mem"
	"github.com/nimbus-os/nimbus/kernel/sync"
)

var (
	// ErrNoUsableMemory is returned by NewAllocator when the memory map
	// yields no allocatable frames after page-boundary clipping.
	ErrNoUsableMemory = &kernel.Error{Module: "pmm", Message: "memory map contains no allocatable frames"}

	// ErrOutOfMemory is returned by AllocFrame when every frame is
	// currently issued.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}

	// ErrFrameNotManaged is returned by FreeFrame for frames that do not
	// fall inside any free region's clipped range.
	ErrFrameNotManaged = &kernel.Error{Module: "pmm", Message: "frame does not belong to a free memory region"}

	// ErrDoubleFree is returned by FreeFrame for frames that are already
	// free.
	ErrDoubleFree = &kernel.Error{Module: "pmm", Message: "frame is already free"}
)

const (
	// freeListEnd terminates a pool's free list.
	freeListEnd int32 = -1

	// frameAllocated marks a list entry whose frame is currently issued.
	frameAllocated int32 = -2
)

// framePool tracks the allocation state for the frames of a single free
// memory region. The free frames form a singly linked list threaded through
// the next slice: entry i holds the pool-relative index of the next free
// frame, freeListEnd at the list tail, or frameAllocated while frame
// (startFrame + i) is issued. Pops and pushes are O(1) and the frameAllocated
// sentinel makes double-free detection O(1) as well.
//
// The pool-relative index is an int32, which caps a single region at 8Tb of
// usable memory.
type framePool struct {
	// startFrame is the frame number for the first page in this pool.
	startFrame Frame

	// endFrame is the frame number for the last page in this pool
	// (inclusive).
	endFrame Frame

	// freeCount tracks the available frames in this pool. The allocator
	// uses this field to skip exhausted pools without touching the list.
	freeCount uint64

	// freeHead is the index of the first free list entry, or freeListEnd
	// when the pool is exhausted.
	freeHead int32

	next []int32
}

// contains returns true if the pool manages the given frame.
func (p *framePool) contains(frame Frame) bool {
	return frame >= p.startFrame && frame <= p.endFrame
}

// pop removes and returns the frame at the head of the pool's free list. The
// caller must ensure the pool is not exhausted.
func (p *framePool) pop() Frame {
	index := p.freeHead
	p.freeHead = p.next[index]
	p.next[index] = frameAllocated
	p.freeCount--

	return p.startFrame + Frame(index)
}

// push returns a previously issued frame to the head of the pool's free
// list. Pushing a frame that is already free fails with ErrDoubleFree and
// leaves the pool untouched.
func (p *framePool) push(frame Frame) *kernel.Error {
	index := int32(frame - p.startFrame)
	if p.next[index] != frameAllocated {
		return ErrDoubleFree
	}

	p.next[index] = p.freeHead
	p.freeHead = index
	p.freeCount++

	return nil
}

// Allocator hands out and reclaims single frames of physical memory for the
// lifetime of the kernel. It is constructed once from a populated MemoryMap
// and copies everything it needs; the map is not referenced afterwards.
//
// AllocFrame and FreeFrame may be invoked both by ordinary kernel code and by
// interrupt handlers: each call performs its O(1) work under a spinlock with
// interrupts masked.
type Allocator struct {
	lock sync.Spinlock

	// pools track the clipped free regions in memory map insertion order.
	pools []framePool

	// lastAllocPool is the index of the pool that served the most recent
	// allocation and is tried first by the next one.
	lastAllocPool int

	totalFrames uint64
	freeFrames  uint64
}

// NewAllocator builds a frame allocator from the free regions of the given
// memory map. Region bounds are clipped inward to page boundaries; regions
// too small to cover a full page contribute no frames, which is routine for
// firmware maps and not an error. If no region contributes any frames the
// call fails with ErrNoUsableMemory.
func NewAllocator(m *MemoryMap) (*Allocator, *kernel.Error) {
	alloc := new(Allocator)

	m.VisitRegions(func(region Region) bool {
		if region.Kind != RegionFree {
			return true
		}

		start := region.Start.AlignUp()
		end := region.End.AlignDown()
		if start >= end {
			return true
		}

		pool := framePool{
			startFrame: FrameFromAddress(start),
			endFrame:   FrameFromAddress(end) - 1,
			freeCount:  mem.Size(end - start).Pages(),
		}

		// Chain the frames in ascending order; frees will push
		// reclaimed frames back LIFO.
		pool.next = make([]int32, pool.freeCount)
		for i := range pool.next {
			pool.next[i] = int32(i) + 1
		}
		pool.next[len(pool.next)-1] = freeListEnd
		pool.freeHead = 0

		alloc.totalFrames += pool.freeCount
		alloc.freeFrames += pool.freeCount
		alloc.pools = append(alloc.pools, pool)
		return true
	})

	if alloc.totalFrames == 0 {
		return nil, ErrNoUsableMemory
	}

	return alloc, nil
}

// AllocFrame reserves and returns a currently free frame. No ordering
// guarantee is made about which free frame is selected. AllocFrame fails
// with ErrOutOfMemory when every frame is issued.
func (alloc *Allocator) AllocFrame() (Frame, *kernel.Error) {
	state := alloc.lock.AcquireIrqSave()
	defer alloc.lock.ReleaseIrqRestore(state)

	for offset := 0; offset < len(alloc.pools); offset++ {
		poolIndex := (alloc.lastAllocPool + offset) % len(alloc.pools)
		pool := &alloc.pools[poolIndex]
		if pool.freeHead == freeListEnd {
			continue
		}

		alloc.lastAllocPool = poolIndex
		alloc.freeFrames--
		return pool.pop(), nil
	}

	return InvalidFrame, ErrOutOfMemory
}

// FreeFrame returns a previously allocated frame to the free state. The call
// fails with ErrFrameNotManaged if the frame lies outside every free region
// known to the allocator and with ErrDoubleFree if the frame is already
// free. A failed call leaves the allocator state unchanged.
func (alloc *Allocator) FreeFrame(frame Frame) *kernel.Error {
	state := alloc.lock.AcquireIrqSave()
	defer alloc.lock.ReleaseIrqRestore(state)

	for poolIndex := range alloc.pools {
		pool := &alloc.pools[poolIndex]
		if !pool.contains(frame) {
			continue
		}

		if err := pool.push(frame); err != nil {
			return err
		}

		alloc.freeFrames++
		return nil
	}

	return ErrFrameNotManaged
}

// TotalFrames returns the number of frames managed by the allocator.
func (alloc *Allocator) TotalFrames() uint64 {
	return alloc.totalFrames
}

// FreeFrames returns the number of frames that are currently free.
func (alloc *Allocator) FreeFrames() uint64 {
	state := alloc.lock.AcquireIrqSave()
	defer alloc.lock.ReleaseIrqRestore(state)

	return alloc.freeFrames
}
