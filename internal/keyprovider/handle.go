// Package keyprovider resolves a stage descriptor's key_id into a
// KeyHandle, owning derivation and zeroization so internal/stage only
// ever borrows bytes (spec.md §3 "Key handle", §6 "Key material source").
package keyprovider

import "sync"

// Handle owns secret key bytes. Bytes returns a read-only-by-convention
// view (Go cannot enforce immutability on a slice; callers must not
// mutate it); Close zeroizes the underlying array. A Handle must never
// be logged, serialized, or compared for equality by value.
type Handle struct {
	mu     sync.Mutex
	b      []byte
	closed bool
}

// NewHandle takes ownership of key, zeroizing the caller's copy is the
// caller's responsibility if it still holds one.
func NewHandle(key []byte) *Handle {
	return &Handle{b: key}
}

// Bytes returns the key material. Returns nil if the handle was closed.
func (h *Handle) Bytes() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	return h.b
}

// Close zeroizes the key bytes. Safe to call more than once.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	for i := range h.b {
		h.b[i] = 0
	}
	h.closed = true
	return nil
}
