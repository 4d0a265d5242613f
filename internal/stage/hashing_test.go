package stage

import (
	"bytes"
	"testing"
)

func TestHashingPerChunkIdentityAndObserve(t *testing.T) {
	s, err := NewHashing(AlgoSHA256, ScopePerChunk, 1)
	if err != nil {
		t.Fatalf("NewHashing: %v", err)
	}

	var observed []byte
	ctx := &Context{OnChunkHash: func(sum []byte) { observed = append([]byte(nil), sum...) }}

	in := []byte("chunk payload")
	out, err := s.Forward(in, ctx)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Fatalf("per-chunk hashing must pass bytes through unchanged")
	}
	if len(observed) == 0 {
		t.Fatalf("expected OnChunkHash callback to fire")
	}
}

func TestHashingWholeStreamIsIdentityNoOp(t *testing.T) {
	s, err := NewHashing(AlgoSHA256, ScopeWholeStream, 0)
	if err != nil {
		t.Fatalf("NewHashing: %v", err)
	}
	called := false
	ctx := &Context{OnChunkHash: func([]byte) { called = true }}
	in := []byte("stream bytes")
	out, err := s.Forward(in, ctx)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Fatalf("whole-stream stage must be identity")
	}
	if called {
		t.Fatalf("whole-stream stage must not invoke OnChunkHash; that hashing is fused elsewhere")
	}
}

func TestRunningHasherSumHex(t *testing.T) {
	r, err := NewRunning(AlgoSHA256)
	if err != nil {
		t.Fatalf("NewRunning: %v", err)
	}
	r.Write([]byte("abc"))
	got := r.SumHex()
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("SumHex() = %q, want %q", got, want)
	}
}
