// Package admission implements the global CPU/IO/memory admission control
// described in spec §4.7: two FIFO-fair counting semaphores plus a
// mutex-guarded memory tracker, with a cooperative cancellation signal shared by the
// reader, workers, and writer of every pipeline run.
//
// Storage-class IO token defaults, matching spec §4.7's tuning table.
package admission

import (
	"context"
	"runtime"
	"sync"
)

// StorageClass selects the default IO token count when none is given
// explicitly.
type StorageClass int

const (
	StorageNVMe StorageClass = iota
	StorageSSD
	StorageHDD
)

// DefaultIOTokens returns the tuned default IO admission capacity for a
// storage class, per spec §4.7.
func DefaultIOTokens(class StorageClass) int64 {
	switch class {
	case StorageNVMe:
		return 24
	case StorageSSD:
		return 12
	case StorageHDD:
		return 4
	default:
		return 12
	}
}

// Config controls the capacities of a fresh Admission. Zero values take
// the package defaults (spec §4.7: CPU tokens default to logical CPU
// count, IO tokens are tuned by storage class).
type Config struct {
	CPUTokens       int64
	IOTokens        int64
	StorageClass    StorageClass
	MemoryThreshold int64 // bytes; 0 disables memory-based backoff
}

// Admission is a process-wide component with an explicit lifecycle:
// construct once at startup (or once per test case) and hand it to each
// run by reference. It holds no package-level mutable state.
type Admission struct {
	cpu *tokenSemaphore
	io  *tokenSemaphore

	memMu        sync.Mutex
	memUsed      int64
	memThreshold int64
	memFree      chan struct{} // closed and replaced on every release that frees room
}

// New constructs an Admission component. Tests should build a fresh one
// per case (design notes §9).
func New(cfg Config) *Admission {
	cpuTokens := cfg.CPUTokens
	if cpuTokens < 1 {
		cpuTokens = int64(runtime.NumCPU())
	}
	ioTokens := cfg.IOTokens
	if ioTokens < 1 {
		ioTokens = DefaultIOTokens(cfg.StorageClass)
	}

	a := &Admission{
		cpu:          newTokenSemaphore(cpuTokens),
		io:           newTokenSemaphore(ioTokens),
		memThreshold: cfg.MemoryThreshold,
		memFree:      make(chan struct{}),
	}
	return a
}

// AcquireCPU blocks until a CPU token is available or ctx is done. The
// returned release func is guaranteed-safe to call on every exit path,
// including after an error further down the stage chain.
func (a *Admission) AcquireCPU(ctx context.Context) (func(), error) {
	return a.cpu.acquire(ctx)
}

// AcquireIO blocks until an IO token is available or ctx is done.
func (a *Admission) AcquireIO(ctx context.Context) (func(), error) {
	return a.io.acquire(ctx)
}

// CPUInUse and CPUCapacity expose the live token accounting for tests
// asserting "total in-flight CPU work <= cpu_tokens at all times" and
// that, post-cancellation, permit counts return to their initial values.
func (a *Admission) CPUInUse() int64     { return a.cpu.inUseCount() }
func (a *Admission) CPUCapacity() int64  { return a.cpu.capacityCount() }
func (a *Admission) IOInUse() int64      { return a.io.inUseCount() }
func (a *Admission) IOCapacity() int64   { return a.io.capacityCount() }

// ReserveMemory accounts n bytes of in-flight chunk payload against the
// configured threshold. If the threshold would be exceeded, it blocks
// until a Release call brings the counter back under it (or ctx ends).
// A zero threshold disables backoff entirely. A reservation is admitted
// immediately regardless of size when nothing else is in flight, so one
// oversized chunk (spec §8: "very large chunk_size combined with low
// memory threshold") backs off the reader rather than deadlocking.
func (a *Admission) ReserveMemory(ctx context.Context, n int64) error {
	if a.memThreshold <= 0 {
		return nil
	}
	for {
		a.memMu.Lock()
		if a.memUsed == 0 || a.memUsed+n <= a.memThreshold {
			a.memUsed += n
			a.memMu.Unlock()
			return nil
		}
		wait := a.memFree
		a.memMu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}

// ReleaseMemory returns n bytes to the budget and wakes any reservation
// waiting for room.
func (a *Admission) ReleaseMemory(n int64) {
	if a.memThreshold <= 0 {
		return
	}
	a.memMu.Lock()
	a.memUsed -= n
	old := a.memFree
	a.memFree = make(chan struct{})
	a.memMu.Unlock()
	close(old)
}

// MemoryInUse reports the current tracked in-flight byte count.
func (a *Admission) MemoryInUse() int64 {
	a.memMu.Lock()
	defer a.memMu.Unlock()
	return a.memUsed
}
