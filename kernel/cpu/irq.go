// Package cpu exposes processor-level helpers needed by the kernel's
// synchronization primitives.
package cpu

// IrqState captures the interrupt-enable state of the local CPU so it can be
// restored after a critical section.
type IrqState uint64

var (
	// The following function vars are bound to the arch-specific
	// implementations (cli/sti plus a flags snapshot on amd64) by the
	// early boot code. The no-op defaults allow hosted builds and tests
	// to exercise code that masks interrupts.
	disableInterruptsFn = func() IrqState { return 0 }
	restoreInterruptsFn = func(_ IrqState) {}
)

// DisableInterrupts masks maskable external interrupts on the local CPU and
// returns the previous interrupt state.
func DisableInterrupts() IrqState {
	return disableInterruptsFn()
}

// RestoreInterrupts restores the interrupt state captured by a previous call
// to DisableInterrupts.
func RestoreInterrupts(state IrqState) {
	restoreInterruptsFn(state)
}

// SetInterruptHandlers binds the arch-specific interrupt mask functions. It
// must be called once by the boot sequence before any spinlock that masks
// interrupts is acquired.
func SetInterruptHandlers(disable func() IrqState, restore func(IrqState)) {
	disableInterruptsFn = disable
	restoreInterruptsFn = restore
}
