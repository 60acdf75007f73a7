// Package multiboot parses the information blob that a multiboot2-compliant
// bootloader hands to the kernel. Only the pieces required by the memory
// subsystem (the memory-map tag) are implemented.
package multiboot

import "encoding/binary"

// tagType describes the type of a tag inside the multiboot info blob.
type tagType uint32

const (
	tagMbSectionEnd tagType = 0
	tagMemoryMap    tagType = 6
)

const (
	// infoHeaderLen is the length of the fixed header (total size plus a
	// reserved dword) that precedes the tag list.
	infoHeaderLen = 8

	// tagHeaderLen is the length of the type/size header common to all tags.
	tagHeaderLen = 8

	// mmapEntryLen is the length of each entry in the memory-map tag:
	// base address, length, type and a reserved dword.
	mmapEntryLen = 24
)

// MemoryEntryType defines the type of a MemoryMapEntry.
type MemoryEntryType uint32

const (
	// MemAvailable indicates that the memory region is available for use.
	MemAvailable MemoryEntryType = iota + 1

	// MemReserved indicates that the memory region is not available for use.
	MemReserved

	// MemAcpiReclaimable indicates a memory region that holds ACPI info that
	// can be reused by the OS.
	MemAcpiReclaimable

	// MemNvs indicates memory that must be preserved when hibernating.
	MemNvs

	// Any value >= memUnknown will be mapped to MemReserved.
	memUnknown
)

// String implements fmt.Stringer for MemoryEntryType.
func (t MemoryEntryType) String() string {
	switch t {
	case MemAvailable:
		return "available"
	case MemReserved:
		return "reserved"
	case MemAcpiReclaimable:
		return "ACPI (reclaimable)"
	case MemNvs:
		return "NVS"
	default:
		return "unknown"
	}
}

// MemoryMapEntry describes a memory region entry, namely its physical
// address, its length and its type.
type MemoryMapEntry struct {
	// The physical address for this memory region.
	PhysAddress uint64

	// The length of the memory region.
	Length uint64

	// The type of this entry.
	Type MemoryEntryType
}

// MemRegionVisitor defines a visitor function that gets invoked by
// VisitMemRegions for each memory region provided by the boot loader. The
// visitor must return true to continue or false to abort the scan.
type MemRegionVisitor func(entry *MemoryMapEntry) bool

var infoData []byte

// SetInfoData registers the multiboot information blob that was handed to
// the kernel by the bootloader. This function must be invoked before any
// other function exported by this package.
func SetInfoData(data []byte) {
	infoData = data
}

// VisitMemRegions invokes the supplied visitor for each memory region defined
// by the multiboot memory-map tag. Entries with an unknown type are reported
// as reserved. If the blob is missing or carries no memory-map tag the
// visitor is never invoked.
func VisitMemRegions(visitor MemRegionVisitor) {
	tag, size := findTagByType(tagMemoryMap)
	if size < 8 {
		return
	}

	// The tag payload starts with the entry size and entry version dwords.
	entrySize := int(binary.LittleEndian.Uint32(tag[0:4]))
	if entrySize < mmapEntryLen {
		return
	}

	var entry MemoryMapEntry
	for off := 8; off+mmapEntryLen <= len(tag); off += entrySize {
		entry.PhysAddress = binary.LittleEndian.Uint64(tag[off : off+8])
		entry.Length = binary.LittleEndian.Uint64(tag[off+8 : off+16])
		entry.Type = MemoryEntryType(binary.LittleEndian.Uint32(tag[off+16 : off+20]))

		// Mark unknown entry types as reserved
		if entry.Type == 0 || entry.Type >= memUnknown {
			entry.Type = MemReserved
		}

		if !visitor(&entry) {
			return
		}
	}
}

// findTagByType scans the tag list for the first tag with the given type and
// returns the tag payload and its length in bytes. A zero length indicates
// that the tag is not present.
func findTagByType(wanted tagType) ([]byte, int) {
	if len(infoData) < infoHeaderLen {
		return nil, 0
	}

	totalSize := int(binary.LittleEndian.Uint32(infoData[0:4]))
	if totalSize > len(infoData) {
		totalSize = len(infoData)
	}

	for off := infoHeaderLen; off+tagHeaderLen <= totalSize; {
		curType := tagType(binary.LittleEndian.Uint32(infoData[off : off+4]))
		curSize := int(binary.LittleEndian.Uint32(infoData[off+4 : off+8]))
		if curType == tagMbSectionEnd || curSize < tagHeaderLen || off+curSize > totalSize {
			break
		}

		if curType == wanted {
			return infoData[off+tagHeaderLen : off+curSize], curSize - tagHeaderLen
		}

		// Tags are padded so that the next one starts at an 8-byte boundary.
		off += (curSize + 7) &^ 7
	}

	return nil, 0
}
