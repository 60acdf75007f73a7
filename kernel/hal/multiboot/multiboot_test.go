package multiboot

import (
	"encoding/binary"
	"testing"
)

func TestVisitMemRegions(t *testing.T) {
	SetInfoData(mockInfoData())
	defer SetInfoData(nil)

	expEntries := []MemoryMapEntry{
		{PhysAddress: 0, Length: 0x9fc00, Type: MemAvailable},
		{PhysAddress: 0x9fc00, Length: 0x400, Type: MemReserved},
		{PhysAddress: 0xf0000, Length: 0x10000, Type: MemAcpiReclaimable},
		// Entry type 0x2badb002 is unknown and must be coerced to reserved.
		{PhysAddress: 0x100000, Length: 0x7ee0000, Type: MemReserved},
	}

	var visited int
	VisitMemRegions(func(entry *MemoryMapEntry) bool {
		if visited >= len(expEntries) {
			t.Fatalf("visitor invoked more than %d times", len(expEntries))
		}

		if exp := expEntries[visited]; *entry != exp {
			t.Errorf("[entry %d] expected %+v; got %+v", visited, exp, *entry)
		}

		visited++
		return true
	})

	if exp := len(expEntries); visited != exp {
		t.Fatalf("expected visitor to be invoked %d times; got %d", exp, visited)
	}
}

func TestVisitMemRegionsAbortsWhenVisitorReturnsFalse(t *testing.T) {
	SetInfoData(mockInfoData())
	defer SetInfoData(nil)

	var visited int
	VisitMemRegions(func(_ *MemoryMapEntry) bool {
		visited++
		return false
	})

	if exp := 1; visited != exp {
		t.Fatalf("expected visitor to be invoked %d time(s); got %d", exp, visited)
	}
}

func TestVisitMemRegionsWithMissingTag(t *testing.T) {
	specs := [][]byte{
		// No blob registered at all
		nil,
		// Truncated header
		{1, 2, 3},
		// Header followed immediately by the end tag
		func() []byte {
			blob := make([]byte, 24)
			binary.LittleEndian.PutUint32(blob[0:4], 24)
			binary.LittleEndian.PutUint32(blob[8:12], 0) // end tag
			binary.LittleEndian.PutUint32(blob[12:16], 8)
			return blob
		}(),
	}

	for specIndex, blob := range specs {
		SetInfoData(blob)

		VisitMemRegions(func(_ *MemoryMapEntry) bool {
			t.Errorf("[spec %d] expected visitor not to be invoked", specIndex)
			return true
		})
	}

	SetInfoData(nil)
}

func TestMemoryEntryTypeStrings(t *testing.T) {
	specs := []struct {
		entryType MemoryEntryType
		expString string
	}{
		{MemAvailable, "available"},
		{MemReserved, "reserved"},
		{MemAcpiReclaimable, "ACPI (reclaimable)"},
		{MemNvs, "NVS"},
		{MemoryEntryType(0xbad), "unknown"},
	}

	for specIndex, spec := range specs {
		if got := spec.entryType.String(); got != spec.expString {
			t.Errorf("[spec %d] expected String() to return %q; got %q", specIndex, spec.expString, got)
		}
	}
}

// mockInfoData assembles a multiboot info blob containing a bootloader-name
// tag (which the memory-map scan must skip), a memory-map tag with four
// entries and the end tag.
func mockInfoData() []byte {
	type rawEntry struct {
		base, length uint64
		entryType    uint32
	}

	entries := []rawEntry{
		{0, 0x9fc00, 1},
		{0x9fc00, 0x400, 2},
		{0xf0000, 0x10000, 3},
		{0x100000, 0x7ee0000, 0x2badb002},
	}

	// name tag (type 2) with a 5-byte payload, padded to the next 8-byte
	// boundary.
	nameTag := make([]byte, 16)
	binary.LittleEndian.PutUint32(nameTag[0:4], 2)
	binary.LittleEndian.PutUint32(nameTag[4:8], 13)
	copy(nameTag[8:], "GRUB\x00")

	mmapTag := make([]byte, 16+len(entries)*mmapEntryLen)
	binary.LittleEndian.PutUint32(mmapTag[0:4], 6)
	binary.LittleEndian.PutUint32(mmapTag[4:8], uint32(len(mmapTag)))
	binary.LittleEndian.PutUint32(mmapTag[8:12], mmapEntryLen) // entry size
	binary.LittleEndian.PutUint32(mmapTag[12:16], 0)           // entry version
	for i, entry := range entries {
		off := 16 + i*mmapEntryLen
		binary.LittleEndian.PutUint64(mmapTag[off:off+8], entry.base)
		binary.LittleEndian.PutUint64(mmapTag[off+8:off+16], entry.length)
		binary.LittleEndian.PutUint32(mmapTag[off+16:off+20], entry.entryType)
	}

	endTag := make([]byte, 8)
	binary.LittleEndian.PutUint32(endTag[4:8], 8)

	blob := make([]byte, infoHeaderLen)
	blob = append(blob, nameTag...)
	blob = append(blob, mmapTag...)
	blob = append(blob, endTag...)
	binary.LittleEndian.PutUint32(blob[0:4], uint32(len(blob)))

	return blob
}
