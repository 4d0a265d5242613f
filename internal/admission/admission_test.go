package admission

import (
	"context"
	"testing"
	"time"
)

func TestAcquireReleaseRestoresCapacity(t *testing.T) {
	a := New(Config{CPUTokens: 2, IOTokens: 1})

	release1, err := a.AcquireCPU(context.Background())
	if err != nil {
		t.Fatalf("AcquireCPU: %v", err)
	}
	if a.CPUInUse() != 1 {
		t.Fatalf("CPUInUse = %d, want 1", a.CPUInUse())
	}
	release1()
	if a.CPUInUse() != 0 {
		t.Fatalf("CPUInUse after release = %d, want 0", a.CPUInUse())
	}
}

func TestAcquireBlocksPastCapacity(t *testing.T) {
	a := New(Config{CPUTokens: 1})
	release, err := a.AcquireCPU(context.Background())
	if err != nil {
		t.Fatalf("AcquireCPU: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = a.AcquireCPU(ctx)
	if err == nil {
		t.Fatalf("expected second acquire to block until timeout")
	}
	release()
}

func TestReserveMemoryBlocksUntilReleased(t *testing.T) {
	a := New(Config{MemoryThreshold: 100})
	if err := a.ReserveMemory(context.Background(), 80); err != nil {
		t.Fatalf("ReserveMemory: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- a.ReserveMemory(context.Background(), 50)
	}()

	select {
	case <-done:
		t.Fatalf("second reservation should have blocked")
	case <-time.After(30 * time.Millisecond):
	}

	a.ReleaseMemory(80)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ReserveMemory: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("reservation never unblocked after release")
	}
}

func TestReserveMemoryAdmitsOversizedSoleReservation(t *testing.T) {
	a := New(Config{MemoryThreshold: 10})
	// A single chunk larger than the whole threshold must still be
	// admitted when nothing else is in flight, or the reader would
	// deadlock forever (spec.md §8).
	if err := a.ReserveMemory(context.Background(), 1000); err != nil {
		t.Fatalf("ReserveMemory: %v", err)
	}
	if a.MemoryInUse() != 1000 {
		t.Fatalf("MemoryInUse = %d, want 1000", a.MemoryInUse())
	}
}

func TestCancelTokenObservedByWaiters(t *testing.T) {
	tok := NewCancelToken(context.Background())
	if tok.IsCancelled() {
		t.Fatalf("fresh token should not be cancelled")
	}
	tok.Cancel(nil)
	if !tok.IsCancelled() {
		t.Fatalf("expected token to be cancelled")
	}
	select {
	case <-tok.Done():
	default:
		t.Fatalf("Done() channel should be closed after Cancel")
	}
}
