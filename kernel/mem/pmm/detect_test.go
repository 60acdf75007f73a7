package pmm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/nimbus-os/nimbus/kernel/hal/multiboot"
	"github.com/nimbus-os/nimbus/kernel/kfmt"
	"github.com/nimbus-os/nimbus/kernel/mem"
)

type rawBootRegion struct {
	base, length uint64
	entryType    uint32
}

// mockBootInfo assembles a multiboot info blob whose memory-map tag holds the
// given regions.
func mockBootInfo(regions []rawBootRegion) []byte {
	const entryLen = 24

	mmapTag := make([]byte, 16+len(regions)*entryLen)
	binary.LittleEndian.PutUint32(mmapTag[0:4], 6) // memory-map tag
	binary.LittleEndian.PutUint32(mmapTag[4:8], uint32(len(mmapTag)))
	binary.LittleEndian.PutUint32(mmapTag[8:12], entryLen)
	for i, region := range regions {
		off := 16 + i*entryLen
		binary.LittleEndian.PutUint64(mmapTag[off:off+8], region.base)
		binary.LittleEndian.PutUint64(mmapTag[off+8:off+16], region.length)
		binary.LittleEndian.PutUint32(mmapTag[off+16:off+20], region.entryType)
	}

	endTag := make([]byte, 8)
	binary.LittleEndian.PutUint32(endTag[4:8], 8)

	blob := append(make([]byte, 8), mmapTag...)
	blob = append(blob, endTag...)
	binary.LittleEndian.PutUint32(blob[0:4], uint32(len(blob)))

	return blob
}

func TestDetectMemoryMap(t *testing.T) {
	multiboot.SetInfoData(mockBootInfo([]rawBootRegion{
		{0, 0x9fc00, 1},
		{0x9fc00, 0x400, 2},
		{0xf0000, 0x10000, 3},
		// Zero-length entries are dropped
		{0xfffc0000, 0, 2},
		{0x100000, 0x7ee0000, 1},
	}))
	defer multiboot.SetInfoData(nil)

	m, err := DetectMemoryMap(8)
	if err != nil {
		t.Fatalf("unexpected DetectMemoryMap error: %v", err)
	}

	expRegions := []Region{
		{Kind: RegionFree, Start: 0, End: 0x9fc00},
		{Kind: RegionReserved, Start: 0x9fc00, End: 0xa0000},
		{Kind: RegionReserved, Start: 0xf0000, End: 0x100000},
		{Kind: RegionFree, Start: 0x100000, End: 0x7fe0000},
	}

	if exp, got := len(expRegions), m.NumRegions(); got != exp {
		t.Fatalf("expected map to contain %d regions; got %d", exp, got)
	}

	var visited int
	m.VisitRegions(func(region Region) bool {
		if exp := expRegions[visited]; region != exp {
			t.Errorf("[region %d] expected %+v; got %+v", visited, exp, region)
		}
		visited++
		return true
	})

	if exp, got := mem.Size(0x9fc00+0x7ee0000), m.TotalBytes(RegionFree); got != exp {
		t.Errorf("expected free byte total to be %d; got %d", exp, got)
	}
}

func TestDetectMemoryMapWithBrokenFirmwareMap(t *testing.T) {
	// Firmware reports two intersecting regions; boot must see the error
	// and abort rather than build an allocator from a broken map.
	multiboot.SetInfoData(mockBootInfo([]rawBootRegion{
		{0x100000, 0x200000, 1},
		{0x200000, 0x200000, 2},
	}))
	defer multiboot.SetInfoData(nil)

	if _, err := DetectMemoryMap(8); err != ErrRegionOverlap {
		t.Fatalf("expected DetectMemoryMap to return ErrRegionOverlap; got %v", err)
	}

	// A map with more entries than the catalogue capacity is rejected too.
	multiboot.SetInfoData(mockBootInfo([]rawBootRegion{
		{0x100000, 0x1000, 1},
		{0x101000, 0x1000, 2},
		{0x102000, 0x1000, 1},
	}))

	if _, err := DetectMemoryMap(2); err != ErrMapFull {
		t.Fatalf("expected DetectMemoryMap to return ErrMapFull; got %v", err)
	}
}

func TestInit(t *testing.T) {
	multiboot.SetInfoData(mockBootInfo([]rawBootRegion{
		{0, 0x9fc00, 1},
		{0x9fc00, 0x60400, 2},
		{0x100000, 0x7ee0000, 1},
	}))
	defer multiboot.SetInfoData(nil)

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)
	defer kfmt.SetOutputSink(nil)

	alloc, err := Init()
	if err != nil {
		t.Fatalf("unexpected Init error: %v", err)
	}

	// Region one clips to [0, 0x9f000) => 159 frames; region two provides
	// 32480 frames with its original page-aligned extents.
	if exp, got := uint64(159+32480), alloc.TotalFrames(); got != exp {
		t.Fatalf("expected allocator to manage %d frames; got %d", exp, got)
	}

	if !bytes.Contains(buf.Bytes(), []byte("system memory map")) {
		t.Error("expected Init to print the system memory map")
	}
}
