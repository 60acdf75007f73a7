// Package mem provides the basic address and size types used by the memory
// management subsystem.
package mem

const (
	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a frame number (shift
	// right by PageShift) and vice-versa.
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = Size(1 << PageShift)
)

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

// Pages returns the number of pages required for storing this size.
func (s Size) Pages() uint64 {
	pageSizeMinus1 := PageSize - 1
	return uint64((s+pageSizeMinus1)&^pageSizeMinus1) >> PageShift
}
