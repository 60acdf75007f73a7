package pmm

import (
	"io"

	"github.com/nimbus-os/nimbus/kernel"
	"github.com/nimbus-os/nimbus/kernel/kfmt"
	"github.com/nimbus-os/nimbus/kernel/mem"
)

var (
	// ErrMapFull is returned by AddRegion when the map already holds its
	// maximum number of regions.
	ErrMapFull = &kernel.Error{Module: "pmm", Message: "memory map cannot hold any more regions"}

	// ErrInvalidRegion is returned by AddRegion for zero-length or
	// inverted regions.
	ErrInvalidRegion = &kernel.Error{Module: "pmm", Message: "region start must be less than region end"}

	// ErrRegionOverlap is returned by AddRegion when a region's byte
	// range intersects an already-registered region.
	ErrRegionOverlap = &kernel.Error{Module: "pmm", Message: "region overlaps a previously added region"}
)

// RegionKind describes how a physical memory region may be used.
type RegionKind uint32

const (
	// RegionFree indicates usable general-purpose RAM. Only free regions
	// are eligible for frame allocation.
	RegionFree RegionKind = iota + 1

	// RegionReserved indicates memory claimed by firmware, MMIO, the
	// kernel image or bootloader structures. Any kind other than
	// RegionFree is treated as reserved by the allocator.
	RegionReserved
)

// String implements fmt.Stringer for RegionKind.
func (k RegionKind) String() string {
	switch k {
	case RegionFree:
		return "free"
	case RegionReserved:
		return "reserved"
	default:
		return "unknown"
	}
}

// Region describes the half-open physical byte range [Start, End) together
// with its usage kind.
type Region struct {
	Kind  RegionKind
	Start mem.PhysAddr
	End   mem.PhysAddr
}

// Size returns the length of the region in bytes.
func (r Region) Size() mem.Size {
	return mem.Size(r.End - r.Start)
}

// overlaps returns true if the byte ranges of r and other intersect.
// Regions that merely touch do not overlap.
func (r Region) overlaps(other Region) bool {
	return r.Start < other.End && other.Start < r.End
}

// MemoryMap is a bounded catalogue of the physical memory regions reported
// by the bootloader. It is populated by the boot sequence via AddRegion
// before the frame allocator exists and is treated as read-only afterwards.
//
// MemoryMap is not safe for concurrent use; by construction it is only ever
// touched during the single-threaded early boot stage.
type MemoryMap struct {
	// regions is allocated once with a fixed capacity and never grown,
	// preserving bounded storage across embedded and hosted builds.
	regions []Region
}

// NewMemoryMap returns an empty memory map that can hold up to maxRegions
// regions.
func NewMemoryMap(maxRegions int) *MemoryMap {
	return &MemoryMap{
		regions: make([]Region, 0, maxRegions),
	}
}

// AddRegion appends a region to the map. The call fails if the map is full,
// if the region's start is not strictly less than its end, or if the region's
// byte range intersects an already-registered region. Regions are never
// merged or split: an overlapping report is a boot-time configuration error
// that the caller must deal with. A failed call leaves the map untouched.
func (m *MemoryMap) AddRegion(region Region) *kernel.Error {
	if len(m.regions) == cap(m.regions) {
		return ErrMapFull
	}

	if region.Start >= region.End {
		return ErrInvalidRegion
	}

	for _, existing := range m.regions {
		if region.overlaps(existing) {
			return ErrRegionOverlap
		}
	}

	m.regions = append(m.regions, region)
	return nil
}

// NumRegions returns the number of regions currently held by the map.
func (m *MemoryMap) NumRegions() int {
	return len(m.regions)
}

// VisitRegions invokes visitor for each region in insertion order. The
// visitor must return true to continue or false to abort the scan. Consumers
// must not assume the regions are sorted by address.
func (m *MemoryMap) VisitRegions(visitor func(Region) bool) {
	for _, region := range m.regions {
		if !visitor(region) {
			return
		}
	}
}

// TotalBytes returns the sum of the byte lengths of all regions with the
// given kind.
func (m *MemoryMap) TotalBytes(kind RegionKind) mem.Size {
	var total mem.Size
	for _, region := range m.regions {
		if region.Kind == kind {
			total += region.Size()
		}
	}

	return total
}

// Print writes the system memory map to the active kfmt output sink.
func (m *MemoryMap) Print() {
	m.print(kfmt.Printf)
}

// PrintTo writes the system memory map to w.
func (m *MemoryMap) PrintTo(w io.Writer) {
	m.print(func(format string, args ...interface{}) {
		kfmt.Fprintf(w, format, args...)
	})
}

func (m *MemoryMap) print(printfn func(string, ...interface{})) {
	printfn("[pmm] system memory map:\n")
	for _, region := range m.regions {
		printfn("\t[0x%10x - 0x%10x], size: %10d, type: %s\n",
			uint64(region.Start), uint64(region.End), uint64(region.Size()), region.Kind.String(),
		)
	}
	printfn("[pmm] free memory: %dKb\n", uint64(m.TotalBytes(RegionFree)/mem.Kb))
}
