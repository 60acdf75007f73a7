// Package pmm contains code that manages physical memory frame allocations.
package pmm

import (
	"math"

	"github.com/nimbus-os/nimbus/kernel/mem"
)

// Frame describes a physical memory frame index.
type Frame uint64

// InvalidFrame is returned by frame allocators when they fail to reserve a
// frame.
const InvalidFrame = Frame(math.MaxUint64)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of the first byte of this frame.
func (f Frame) Address() mem.PhysAddr {
	return mem.PhysAddr(f << mem.PageShift)
}

// FrameFromAddress returns the frame that contains the given physical
// address, rounding down for addresses that are not page-aligned.
func FrameFromAddress(addr mem.PhysAddr) Frame {
	return Frame(addr >> mem.PageShift)
}
