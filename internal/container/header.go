// Package container encodes and decodes the on-disk layout a run produces:
// a sequence of chunk frames followed by a trailing JSON header and a
// fixed-size footer (spec.md §3, §4.6).
package container

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hambosto/adapipe/internal/corerr"
	"github.com/hambosto/adapipe/internal/stage"
)

// FormatVersion values this codec accepts. Only version 1 exists today;
// the encoder refuses to write anything else and the decoder rejects any
// other value with InvalidFormat.
const FormatVersion1 uint16 = 1

var supportedVersions = map[uint16]bool{FormatVersion1: true}

// Step mirrors stage.Descriptor for JSON serialization in the header's
// processing_steps array (spec.md §3).
type Step struct {
	Kind       stage.Kind     `json:"kind"`
	Algorithm  string         `json:"algorithm"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Order      uint32         `json:"order"`
}

func stepsFromDescriptors(descs []stage.Descriptor) []Step {
	out := make([]Step, len(descs))
	for i, d := range descs {
		out[i] = Step{Kind: d.Kind, Algorithm: d.Algorithm, Parameters: d.Parameters, Order: d.Order}
	}
	return out
}

func (s Step) toDescriptor() stage.Descriptor {
	return stage.Descriptor{Kind: s.Kind, Algorithm: s.Algorithm, Parameters: s.Parameters, Order: s.Order}
}

// Header is the trailing JSON document describing how a container was
// produced and what it contains (spec.md §3 "Container header").
type Header struct {
	AppVersion        string         `json:"app_version"`
	FormatVersion     uint16         `json:"format_version"`
	OriginalFilename  string         `json:"original_filename"`
	OriginalSize      uint64         `json:"original_size"`
	OriginalChecksum  string         `json:"original_checksum"`
	OutputChecksum    string         `json:"output_checksum"`
	ProcessingSteps   []Step         `json:"processing_steps"`
	ChunkSize         uint32         `json:"chunk_size"`
	ChunkCount        uint64         `json:"chunk_count"`
	ProcessedAt       time.Time      `json:"processed_at"`
	PipelineID        string         `json:"pipeline_id"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// HeaderParams collects the values known only at the call site (by the
// writer, once the run has finished) needed to build a Header.
type HeaderParams struct {
	AppVersion       string
	OriginalFilename string
	OriginalSize     uint64
	OriginalChecksum string
	OutputChecksum   string
	Steps            []stage.Descriptor
	ChunkSize        uint32
	ChunkCount       uint64
	ProcessedAt      time.Time
	PipelineID       string
	Metadata         map[string]any
}

// NewHeader builds a Header ready for encoding, pinning FormatVersion to
// the codec's current version.
func NewHeader(p HeaderParams) Header {
	return Header{
		AppVersion:       p.AppVersion,
		FormatVersion:    FormatVersion1,
		OriginalFilename: p.OriginalFilename,
		OriginalSize:     p.OriginalSize,
		OriginalChecksum: p.OriginalChecksum,
		OutputChecksum:   p.OutputChecksum,
		ProcessingSteps:  stepsFromDescriptors(p.Steps),
		ChunkSize:        p.ChunkSize,
		ChunkCount:       p.ChunkCount,
		ProcessedAt:      p.ProcessedAt,
		PipelineID:       p.PipelineID,
		Metadata:         p.Metadata,
	}
}

// Descriptors converts the header's processing_steps back into
// stage.Descriptor values, for building the reverse stage chain on
// restore (spec.md §4.8).
func (h Header) Descriptors() []stage.Descriptor {
	out := make([]stage.Descriptor, len(h.ProcessingSteps))
	for i, s := range h.ProcessingSteps {
		out[i] = s.toDescriptor()
	}
	return out
}

// marshalHeader encodes h as JSON, the exact bytes whose length becomes
// header_len in the footer.
func marshalHeader(h Header) ([]byte, error) {
	if !supportedVersions[h.FormatVersion] {
		return nil, corerr.New(corerr.InvalidConfig, "encode header", fmt.Errorf("unsupported format_version %d", h.FormatVersion))
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, corerr.New(corerr.InvalidConfig, "encode header", err)
	}
	return b, nil
}

// MarshalHeader encodes h as the exact JSON bytes whose length becomes
// header_len in the footer (spec.md §4.6), for the writer to call once a
// run has finished.
func MarshalHeader(h Header) ([]byte, error) { return marshalHeader(h) }

// UnmarshalHeader decodes and validates a Header read back from a
// container's trailing bytes (spec.md §4.6 reader side).
func UnmarshalHeader(b []byte) (Header, error) { return unmarshalHeader(b) }

// unmarshalHeader decodes and validates a Header. Invalid JSON or a
// missing/unsupported required field is InvalidFormat (spec.md §4.6).
func unmarshalHeader(b []byte) (Header, error) {
	var h Header
	if err := json.Unmarshal(b, &h); err != nil {
		return Header{}, corerr.New(corerr.InvalidFormat, "decode header", err)
	}
	if err := validateHeader(h); err != nil {
		return Header{}, err
	}
	return h, nil
}

func validateHeader(h Header) error {
	if !supportedVersions[h.FormatVersion] {
		return corerr.New(corerr.InvalidFormat, "header", fmt.Errorf("unsupported format_version %d", h.FormatVersion))
	}
	if h.OriginalFilename == "" {
		return corerr.New(corerr.InvalidFormat, "header", fmt.Errorf("missing original_filename"))
	}
	if h.OriginalChecksum == "" {
		return corerr.New(corerr.InvalidFormat, "header", fmt.Errorf("missing original_checksum"))
	}
	if h.OutputChecksum == "" {
		return corerr.New(corerr.InvalidFormat, "header", fmt.Errorf("missing output_checksum"))
	}
	if len(h.ProcessingSteps) == 0 {
		return corerr.New(corerr.InvalidFormat, "header", fmt.Errorf("empty processing_steps"))
	}
	if h.ChunkSize == 0 {
		return corerr.New(corerr.InvalidFormat, "header", fmt.Errorf("chunk_size must be nonzero"))
	}
	var lastOrder int64 = -1
	for i, s := range h.ProcessingSteps {
		if int64(s.Order) <= lastOrder {
			return corerr.New(corerr.InvalidFormat, "header", fmt.Errorf("processing_steps[%d]: order %d not strictly increasing", i, s.Order))
		}
		lastOrder = int64(s.Order)
		switch s.Kind {
		case stage.KindCompression, stage.KindEncryption, stage.KindHashing, stage.KindPassThrough:
		default:
			return corerr.New(corerr.InvalidFormat, "header", fmt.Errorf("processing_steps[%d]: unknown kind %q", i, s.Kind))
		}
	}
	return nil
}
