package stage

import (
	"bytes"
	"testing"

	"github.com/hambosto/adapipe/internal/corerr"
)

type staticKey struct{ b []byte }

func (s staticKey) Bytes() []byte { return s.b }

func TestEncryptionRoundTrip(t *testing.T) {
	key := staticKey{b: bytes.Repeat([]byte{0x42}, 32)}
	s, err := NewEncryption(AlgoAES256GCM, "k1", key, 1)
	if err != nil {
		t.Fatalf("NewEncryption: %v", err)
	}

	plaintext := []byte("secret message")
	ctx := &Context{Seq: 0}
	ciphertext, err := s.Forward(plaintext, ctx)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Fatalf("ciphertext must differ from plaintext")
	}

	got, err := s.Reverse(ciphertext, ctx)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestEncryptionTamperDetected(t *testing.T) {
	key := staticKey{b: bytes.Repeat([]byte{0x7}, 32)}
	s, err := NewEncryption(AlgoChaCha20Poly1305, "k2", key, 1)
	if err != nil {
		t.Fatalf("NewEncryption: %v", err)
	}

	ciphertext, err := s.Forward([]byte("0123456789"), &Context{})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	tampered := append([]byte(nil), ciphertext...)
	tampered[len(tampered)-1] ^= 0x01

	_, err = s.Reverse(tampered, &Context{Seq: 7})
	if err == nil {
		t.Fatalf("expected tamper detection to fail reverse")
	}
	if corerr.KindOf(err) != corerr.IntegrityFailure {
		t.Fatalf("expected IntegrityFailure, got %v", corerr.KindOf(err))
	}
}

func TestEncryptionNonceNotReused(t *testing.T) {
	key := staticKey{b: bytes.Repeat([]byte{0x1}, 32)}
	s, err := NewEncryption(AlgoXChaCha20Poly1305, "k3", key, 1)
	if err != nil {
		t.Fatalf("NewEncryption: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		out, err := s.Forward([]byte("same plaintext every time"), &Context{})
		if err != nil {
			t.Fatalf("Forward: %v", err)
		}
		nonceLen, _ := NonceLen(AlgoXChaCha20Poly1305)
		nonce := string(out[:nonceLen])
		if seen[nonce] {
			t.Fatalf("nonce reused across calls")
		}
		seen[nonce] = true
	}
}
