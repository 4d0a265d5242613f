package keyprovider

import (
	"bytes"
	"context"
	"testing"

	"github.com/hambosto/adapipe/internal/corerr"
)

func testParams() Argon2Params {
	return Argon2Params{MemoryMB: 8, Iterations: 1, Parallelism: 1, KeyBytes: 32, SaltBytes: 16}
}

func TestPasswordProviderDeriveAndLookup(t *testing.T) {
	p, err := NewPasswordProvider([]byte("correct horse battery staple"), testParams())
	if err != nil {
		t.Fatalf("NewPasswordProvider: %v", err)
	}
	meta, err := p.Derive("k1")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if meta.Algorithm != "argon2id" || meta.SaltHex == "" || meta.AuthTagHex == "" {
		t.Fatalf("incomplete metadata: %+v", meta)
	}

	handle, err := p.Lookup(context.Background(), "k1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(handle.Bytes()) != int(testParams().KeyBytes) {
		t.Fatalf("unexpected key length %d", len(handle.Bytes()))
	}
}

func TestPasswordProviderLoadFromMetadataRejectsWrongPassword(t *testing.T) {
	p1, err := NewPasswordProvider([]byte("right password"), testParams())
	if err != nil {
		t.Fatalf("NewPasswordProvider: %v", err)
	}
	meta, err := p1.Derive("k1")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	p2, err := NewPasswordProvider([]byte("wrong password"), testParams())
	if err != nil {
		t.Fatalf("NewPasswordProvider: %v", err)
	}
	err = p2.LoadFromMetadata("k1", meta)
	if err == nil || corerr.KindOf(err) != corerr.IntegrityFailure {
		t.Fatalf("expected IntegrityFailure for wrong password, got %v", err)
	}
}

func TestPasswordProviderLoadFromMetadataAcceptsCorrectPassword(t *testing.T) {
	p1, err := NewPasswordProvider([]byte("shared secret"), testParams())
	if err != nil {
		t.Fatalf("NewPasswordProvider: %v", err)
	}
	meta, err := p1.Derive("k1")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	original, err := p1.Lookup(context.Background(), "k1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	p2, err := NewPasswordProvider([]byte("shared secret"), testParams())
	if err != nil {
		t.Fatalf("NewPasswordProvider: %v", err)
	}
	if err := p2.LoadFromMetadata("k1", meta); err != nil {
		t.Fatalf("LoadFromMetadata: %v", err)
	}
	restored, err := p2.Lookup(context.Background(), "k1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !bytes.Equal(original.Bytes(), restored.Bytes()) {
		t.Fatalf("re-derived key does not match original")
	}
}

func TestHandleCloseZeroizes(t *testing.T) {
	h := NewHandle([]byte{1, 2, 3, 4})
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if h.Bytes() != nil {
		t.Fatalf("expected nil Bytes() after Close, got %v", h.Bytes())
	}
}
