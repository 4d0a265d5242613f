package stage

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/hambosto/adapipe/internal/corerr"
)

// HashAlgorithm enumerates the digests accepted for a Hashing stage
// (spec §3).
type HashAlgorithm string

const (
	AlgoSHA256 HashAlgorithm = "sha256"
	AlgoSHA512 HashAlgorithm = "sha512"
	AlgoBlake3 HashAlgorithm = "blake3"
)

// NewHasher constructs a fresh hash.Hash for the given algorithm. Shared
// by the per-chunk stage below and by internal/pipeline's reader/writer,
// which run the whole-stream input/output hashers directly rather than
// through the stage dispatch (SPEC_FULL.md §13.5).
func NewHasher(algo HashAlgorithm) (hash.Hash, error) {
	switch algo {
	case AlgoSHA256:
		return sha256.New(), nil
	case AlgoSHA512:
		return sha512.New(), nil
	case AlgoBlake3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", algo)
	}
}

func validateHashingDescriptor(d Descriptor) error {
	switch HashAlgorithm(d.Algorithm) {
	case AlgoSHA256, AlgoSHA512, AlgoBlake3:
	default:
		return fmt.Errorf("unknown hash algorithm %q", d.Algorithm)
	}
	switch HashScope(fmt.Sprint(d.Parameters["scope"])) {
	case ScopePerChunk, ScopeWholeStream:
	default:
		return fmt.Errorf("hashing stage requires scope %q or %q", ScopePerChunk, ScopeWholeStream)
	}
	return nil
}

// Running is a whole-stream hasher shared across every chunk the reader
// or writer observes. It is safe for concurrent Write from multiple
// goroutines only if the caller serializes writes by sequence order,
// which the reader and writer both do by construction; the mutex here
// guards against accidental concurrent use rather than being load-bearing
// for ordering.
type Running struct {
	mu   sync.Mutex
	h    hash.Hash
	algo HashAlgorithm
}

// NewRunning builds a Running hasher for the given algorithm.
func NewRunning(algo HashAlgorithm) (*Running, error) {
	h, err := NewHasher(algo)
	if err != nil {
		return nil, err
	}
	return &Running{h: h, algo: algo}, nil
}

// Write feeds bytes into the running hash.
func (r *Running) Write(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.h.Write(p) //nolint:errcheck // hash.Hash.Write never errors
}

// SumHex returns the current digest as a lowercase hex string, matching
// the container header's original_checksum/output_checksum encoding.
func (r *Running) SumHex() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("%x", r.h.Sum(nil))
}

// Hashing is a stage that updates a hasher with whatever bytes it
// observes and returns them unchanged. Only per-chunk scope stages are
// ever dispatched through the worker stage chain; whole-stream ones are
// structural placeholders in processing_steps, fused into the reader and
// writer instead (spec §4.3).
type Hashing struct {
	algo  HashAlgorithm
	scope HashScope
	order uint32
}

// NewHashing constructs a Hashing stage descriptor. Whole-stream scope
// is only legal at position 0 or the tail of the full stage list; that
// placement invariant is enforced by Build, not here.
func NewHashing(algo HashAlgorithm, scope HashScope, order uint32) (*Hashing, error) {
	if _, err := NewHasher(algo); err != nil {
		return nil, corerr.New(corerr.InvalidConfig, "hashing stage", err)
	}
	switch scope {
	case ScopePerChunk, ScopeWholeStream:
	default:
		return nil, corerr.New(corerr.InvalidConfig, "hashing stage", fmt.Errorf("unknown scope %q", scope))
	}
	return &Hashing{algo: algo, scope: scope, order: order}, nil
}

func (h *Hashing) Kind() Kind { return KindHashing }

func (h *Hashing) Algorithm() HashAlgorithm { return h.algo }

func (h *Hashing) Scope() HashScope { return h.scope }

func (h *Hashing) Descriptor() Descriptor {
	return Descriptor{
		Kind:       KindHashing,
		Algorithm:  string(h.algo),
		Parameters: map[string]any{"scope": string(h.scope)},
		Order:      h.order,
	}
}

func (h *Hashing) Forward(in []byte, ctx *Context) ([]byte, error) {
	return h.observe(in, ctx)
}

func (h *Hashing) Reverse(in []byte, ctx *Context) ([]byte, error) {
	return h.observe(in, ctx)
}

func (h *Hashing) observe(in []byte, ctx *Context) ([]byte, error) {
	if h.scope != ScopePerChunk {
		return in, nil // whole-stream stages are fused elsewhere; identity here
	}
	start := time.Now()
	hasher, err := NewHasher(h.algo)
	if err != nil {
		return nil, corerr.New(corerr.InvalidConfig, "hashing stage", err)
	}
	hasher.Write(in) //nolint:errcheck
	sum := hasher.Sum(nil)
	if ctx != nil && ctx.OnStageTimed != nil {
		ctx.OnStageTimed(string(KindHashing), string(h.algo), time.Since(start).Nanoseconds())
	}
	if ctx != nil && ctx.OnChunkHash != nil {
		ctx.OnChunkHash(sum)
	}
	return in, nil
}
