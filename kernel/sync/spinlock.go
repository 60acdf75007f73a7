// Package sync provides the synchronization primitives used by kernel
// subsystems that must be callable from interrupt context.
package sync

import (
	"sync/atomic"

	"github.com/nimbus-os/nimbus/kernel/cpu"
)

var (
	// yieldFn is invoked while busy-waiting for a contended lock. It is
	// nil on bare metal; tests point it at runtime.Gosched so spinning
	// goroutines do not starve the lock holder.
	yieldFn func()
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available. Critical sections protected by a Spinlock
// must be short and bounded; the lock never blocks or schedules.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for !l.TryToAcquire() {
		if yieldFn != nil {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// AcquireIrqSave masks interrupts on the local CPU and then acquires the
// lock, making the critical section safe against interrupt handlers that
// need the same lock. The returned state must be passed to
// ReleaseIrqRestore.
func (l *Spinlock) AcquireIrqSave() cpu.IrqState {
	state := cpu.DisableInterrupts()
	l.Acquire()
	return state
}

// ReleaseIrqRestore releases the lock and restores the interrupt state
// captured by the matching AcquireIrqSave call.
func (l *Spinlock) ReleaseIrqRestore(state cpu.IrqState) {
	l.Release()
	cpu.RestoreInterrupts(state)
}
