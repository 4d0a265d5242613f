package stage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/hambosto/adapipe/internal/corerr"
)

// EncryptionAlgorithm enumerates the AEAD primitives accepted for an
// Encryption stage (spec §3).
type EncryptionAlgorithm string

const (
	AlgoAES256GCM          EncryptionAlgorithm = "aes256gcm"
	AlgoChaCha20Poly1305   EncryptionAlgorithm = "chacha20poly1305"
	AlgoXChaCha20Poly1305  EncryptionAlgorithm = "xchacha20poly1305"
)

func validateEncryptionDescriptor(d Descriptor) error {
	switch EncryptionAlgorithm(d.Algorithm) {
	case AlgoAES256GCM, AlgoChaCha20Poly1305, AlgoXChaCha20Poly1305:
	default:
		return fmt.Errorf("unknown encryption algorithm %q", d.Algorithm)
	}
	keyID, _ := d.Parameters["key_id"].(string)
	if keyID == "" {
		return fmt.Errorf("encryption stage requires a non-empty key_id parameter")
	}
	return nil
}

// KeyHandle is the minimal read-only view of key material a stage needs.
// Ownership, derivation, and zeroization live in internal/keyprovider;
// internal/stage only ever borrows bytes for the lifetime of one call.
type KeyHandle interface {
	Bytes() []byte
}

// NonceLen returns the AEAD's standard nonce length, used by the
// container codec to split the nonce prefix out of the frame (spec §3's
// chunk frame layout; see SPEC_FULL.md §13.4 for why that split happens
// at the container layer rather than inside the stage).
func NonceLen(algo EncryptionAlgorithm) (int, error) {
	switch algo {
	case AlgoAES256GCM, AlgoChaCha20Poly1305:
		return 12, nil
	case AlgoXChaCha20Poly1305:
		return chacha20poly1305.NonceSizeX, nil
	default:
		return 0, fmt.Errorf("unknown encryption algorithm %q", algo)
	}
}

// Encryption is an AEAD stage. Forward generates a fresh random nonce
// per call and returns nonce‖ciphertext_with_tag; Reverse splits that
// prefix back off, verifies, and decrypts. A wrong key or tampered bytes
// surface as IntegrityFailure, never as a more specific (and
// information-leaking) decoder error.
type Encryption struct {
	algo  EncryptionAlgorithm
	keyID string
	order uint32
	key   KeyHandle
}

// NewEncryption constructs an Encryption stage bound to a key handle.
// The handle is borrowed for the stage's lifetime; the stage never
// copies, logs, or serializes its bytes.
func NewEncryption(algo EncryptionAlgorithm, keyID string, key KeyHandle, order uint32) (*Encryption, error) {
	switch algo {
	case AlgoAES256GCM, AlgoChaCha20Poly1305, AlgoXChaCha20Poly1305:
	default:
		return nil, corerr.New(corerr.InvalidConfig, "encryption stage", fmt.Errorf("unknown algorithm %q", algo))
	}
	if key == nil {
		return nil, corerr.New(corerr.InvalidConfig, "encryption stage", fmt.Errorf("key handle is required"))
	}
	return &Encryption{algo: algo, keyID: keyID, order: order, key: key}, nil
}

func (e *Encryption) Kind() Kind { return KindEncryption }

func (e *Encryption) Descriptor() Descriptor {
	return Descriptor{
		Kind:       KindEncryption,
		Algorithm:  string(e.algo),
		Parameters: map[string]any{"key_id": e.keyID},
		Order:      e.order,
	}
}

func (e *Encryption) aead() (cipher.AEAD, error) {
	switch e.algo {
	case AlgoAES256GCM:
		block, err := aes.NewCipher(e.key.Bytes())
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case AlgoChaCha20Poly1305:
		return chacha20poly1305.New(e.key.Bytes())
	case AlgoXChaCha20Poly1305:
		return chacha20poly1305.NewX(e.key.Bytes())
	default:
		return nil, fmt.Errorf("unknown algorithm %q", e.algo)
	}
}

func (e *Encryption) Forward(in []byte, ctx *Context) ([]byte, error) {
	start := time.Now()
	defer e.recordTiming(ctx, start)

	aead, err := e.aead()
	if err != nil {
		return nil, corerr.New(corerr.InvalidConfig, "encryption stage", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, corerr.New(corerr.IoError, "nonce generation", err)
	}
	sealed := aead.Seal(nonce, nonce, in, nil)
	return sealed, nil
}

func (e *Encryption) Reverse(in []byte, ctx *Context) ([]byte, error) {
	start := time.Now()
	defer e.recordTiming(ctx, start)

	aead, err := e.aead()
	if err != nil {
		return nil, corerr.New(corerr.InvalidConfig, "encryption stage", err)
	}
	n := aead.NonceSize()
	if len(in) < n {
		return nil, corerr.New(corerr.IntegrityFailure, fmt.Sprintf("chunk %d", ctx.seqOr0()), fmt.Errorf("ciphertext shorter than nonce"))
	}
	nonce, ciphertext := in[:n], in[n:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, corerr.New(corerr.IntegrityFailure, fmt.Sprintf("chunk %d", ctx.seqOr0()), fmt.Errorf("AEAD authentication failed"))
	}
	return plaintext, nil
}

func (e *Encryption) recordTiming(ctx *Context, start time.Time) {
	if ctx != nil && ctx.OnStageTimed != nil {
		ctx.OnStageTimed(string(KindEncryption), string(e.algo), time.Since(start).Nanoseconds())
	}
}

func (c *Context) seqOr0() uint64 {
	if c == nil {
		return 0
	}
	return c.Seq
}
