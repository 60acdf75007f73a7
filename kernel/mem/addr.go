package mem

// PhysAddr represents a byte-granular physical memory address. PhysAddr
// values are plain integers and compare with the native operators.
type PhysAddr uint64

// Add returns the address size bytes after a. Overflowing the physical
// address width is a caller bug, not a runtime condition, so Add panics when
// the result would wrap.
func (a PhysAddr) Add(size Size) PhysAddr {
	sum := a + PhysAddr(size)
	if sum < a {
		panic("mem: physical address overflow")
	}

	return sum
}

// IsPageAligned returns true if a is aligned to a page boundary.
func (a PhysAddr) IsPageAligned() bool {
	return a&PhysAddr(PageSize-1) == 0
}

// AlignUp rounds a up to the nearest page boundary. Addresses within the
// final page of the address space cannot be rounded up and cause a panic.
func (a PhysAddr) AlignUp() PhysAddr {
	pageSizeMinus1 := PhysAddr(PageSize - 1)
	aligned := (a + pageSizeMinus1) &^ pageSizeMinus1
	if aligned < a {
		panic("mem: physical address overflow")
	}

	return aligned
}

// AlignDown rounds a down to the nearest page boundary.
func (a PhysAddr) AlignDown() PhysAddr {
	return a &^ PhysAddr(PageSize-1)
}
