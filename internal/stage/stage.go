// Package stage implements the transform chain applied to each chunk:
// compression, AEAD encryption, hashing, and pass-through, each runnable
// forward (processing) or reverse (restore), per spec §4.5.
package stage

import (
	"fmt"

	"github.com/hambosto/adapipe/internal/corerr"
)

// Kind is the tag of a stage's sum-type variant (spec §3).
type Kind string

const (
	KindCompression Kind = "compression"
	KindEncryption  Kind = "encryption"
	KindHashing     Kind = "hashing"
	KindPassThrough Kind = "passthrough"
)

// HashScope distinguishes a hashing stage that runs over every chunk
// individually from one that accumulates a single running hash across
// the whole stream.
type HashScope string

const (
	ScopePerChunk     HashScope = "per-chunk"
	ScopeWholeStream  HashScope = "whole-stream"
)

// Descriptor is the inbound stage description accepted from outside the
// core (spec §6): kind/algorithm/parameters/order. Parameters are kept as
// a loosely typed map because each algorithm interprets a different
// subset (compression level, encryption key_id, hashing scope).
type Descriptor struct {
	Kind       Kind           `json:"kind"`
	Algorithm  string         `json:"algorithm"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Order      uint32         `json:"order"`
}

// Context carries the mutable per-run state a stage may touch: the
// owning chunk's sequence number (for error attribution) and a slot for
// stage-kind duration accounting. It intentionally does not expose
// anything about other chunks — a stage only ever sees its own bytes.
type Context struct {
	Seq          uint64
	OnStageTimed func(kind, algorithm string, nanos int64)
	OnChunkHash  func(sum []byte)
}

// Stage is the common contract every variant implements (spec §4.5).
// Forward is called during processing, Reverse during restore; the
// restore chain is the forward chain reversed with each stage flipped.
type Stage interface {
	Kind() Kind
	Descriptor() Descriptor
	Forward(in []byte, ctx *Context) ([]byte, error)
	Reverse(in []byte, ctx *Context) ([]byte, error)
}

// ValidateDescriptors enforces spec §6's inbound contract: non-empty,
// strictly increasing Order, and legal kind/algorithm/parameter
// combinations. It does not insert the system stages — that is
// Build's job — so a caller validating a raw user descriptor
// list sees exactly the errors spec.md promises for malformed input.
func ValidateDescriptors(descs []Descriptor) error {
	if len(descs) == 0 {
		return corerr.New(corerr.InvalidConfig, "stage descriptors", fmt.Errorf("pipeline must have at least one stage"))
	}
	var lastOrder int64 = -1
	for i, d := range descs {
		if int64(d.Order) <= lastOrder {
			return corerr.New(corerr.InvalidConfig, "stage descriptors",
				fmt.Errorf("stage %d: order %d is not strictly increasing after %d", i, d.Order, lastOrder))
		}
		lastOrder = int64(d.Order)
		if err := validateOne(d); err != nil {
			return corerr.New(corerr.InvalidConfig, fmt.Sprintf("stage %d", i), err)
		}
	}
	return nil
}

func validateOne(d Descriptor) error {
	switch d.Kind {
	case KindCompression:
		return validateCompressionDescriptor(d)
	case KindEncryption:
		return validateEncryptionDescriptor(d)
	case KindHashing:
		return validateHashingDescriptor(d)
	case KindPassThrough:
		return nil
	default:
		return fmt.Errorf("unknown stage kind %q", d.Kind)
	}
}
