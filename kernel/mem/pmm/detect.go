package pmm

import (
	"github.com/nimbus-os/nimbus/kernel"
	"github.com/nimbus-os/nimbus/kernel/hal/multiboot"
	"github.com/nimbus-os/nimbus/kernel/mem"
)

// maxBootRegions is the region capacity used for the catalogue built during
// boot. Firmware maps on commodity hardware rarely exceed a few dozen
// entries.
const maxBootRegions = 64

// DetectMemoryMap builds a memory map with capacity maxRegions from the
// memory regions reported by the bootloader. Regions the firmware marks
// available become free regions; every other type, ACPI and NVS included, is
// registered as reserved. Zero-length firmware entries are skipped.
//
// A region list that cannot be registered (over capacity or overlapping
// entries) is a boot-time configuration error and aborts the scan with the
// corresponding AddRegion error.
func DetectMemoryMap(maxRegions int) (*MemoryMap, *kernel.Error) {
	var (
		m   = NewMemoryMap(maxRegions)
		err *kernel.Error
	)

	multiboot.VisitMemRegions(func(entry *multiboot.MemoryMapEntry) bool {
		if entry.Length == 0 {
			return true
		}

		kind := RegionReserved
		if entry.Type == multiboot.MemAvailable {
			kind = RegionFree
		}

		start := mem.PhysAddr(entry.PhysAddress)
		err = m.AddRegion(Region{
			Kind:  kind,
			Start: start,
			End:   start.Add(mem.Size(entry.Length)),
		})
		return err == nil
	})

	if err != nil {
		return nil, err
	}

	return m, nil
}

// Init sets up the kernel physical memory allocation sub-system: it builds
// the region catalogue from the bootloader's memory map, logs it, and
// constructs the frame allocator every other subsystem draws frames from.
func Init() (*Allocator, *kernel.Error) {
	m, err := DetectMemoryMap(maxBootRegions)
	if err != nil {
		return nil, err
	}

	m.Print()

	return NewAllocator(m)
}
