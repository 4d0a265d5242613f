package stage

import (
	"context"
	"fmt"

	"github.com/hambosto/adapipe/internal/corerr"
)

// KeyLookup resolves a key_id to a borrowed KeyHandle, matching spec §6's
// key material source contract: the core calls a provider and gets back
// a handle valid for the run's duration.
type KeyLookup func(ctx context.Context, keyID string) (KeyHandle, error)

// Pipeline is the fully built, immutable stage sequence for one run: the
// user's stages plus the two system-inserted whole-stream hashing
// stages, in construction order (spec §3's "Pipeline configuration").
type Pipeline struct {
	stages         []Stage
	inputHashAlgo  HashAlgorithm
	outputHashAlgo HashAlgorithm
}

// BuildOptions configures system-inserted stage behavior.
type BuildOptions struct {
	InputHashAlgo  HashAlgorithm // default sha256 if empty
	OutputHashAlgo HashAlgorithm // default sha256 if empty
	Keys           KeyLookup
}

// Build validates the user descriptor list, inserts the input-hash stage
// at position 0 and the output-hash stage at the tail, and instantiates
// concrete Stage values. Descriptor Order values are renumbered 0..n-1
// across the full (system + user) sequence, per spec §3's invariant.
func Build(ctx context.Context, userDescs []Descriptor, opts BuildOptions) (*Pipeline, error) {
	if err := ValidateDescriptors(userDescs); err != nil {
		return nil, err
	}
	if opts.InputHashAlgo == "" {
		opts.InputHashAlgo = AlgoSHA256
	}
	if opts.OutputHashAlgo == "" {
		opts.OutputHashAlgo = AlgoSHA256
	}

	stages := make([]Stage, 0, len(userDescs)+2)

	inputHash, err := NewHashing(opts.InputHashAlgo, ScopeWholeStream, 0)
	if err != nil {
		return nil, err
	}
	stages = append(stages, inputHash)

	for i, d := range userDescs {
		s, err := instantiate(ctx, d, uint32(i+1), opts.Keys)
		if err != nil {
			return nil, corerr.New(corerr.InvalidConfig, fmt.Sprintf("stage %d", i), err)
		}
		stages = append(stages, s)
	}

	outputHash, err := NewHashing(opts.OutputHashAlgo, ScopeWholeStream, uint32(len(stages)))
	if err != nil {
		return nil, err
	}
	stages = append(stages, outputHash)

	return &Pipeline{stages: stages, inputHashAlgo: opts.InputHashAlgo, outputHashAlgo: opts.OutputHashAlgo}, nil
}

// StagesFromDescriptors instantiates the exact sequence descs names,
// including any system-inserted whole-stream hashing stages already
// present in a container header's processing_steps, without inserting
// new ones. Used by the restore engine to rebuild the stage list a
// header recorded (spec.md §4.8: "Build the reverse stage chain from
// processing_steps reversed").
func StagesFromDescriptors(ctx context.Context, descs []Descriptor, keys KeyLookup) ([]Stage, error) {
	stages := make([]Stage, 0, len(descs))
	for i, d := range descs {
		var s Stage
		var err error
		if d.Kind == KindHashing {
			scope := HashScope(fmt.Sprint(d.Parameters["scope"]))
			s, err = NewHashing(HashAlgorithm(d.Algorithm), scope, d.Order)
		} else {
			s, err = instantiate(ctx, d, d.Order, keys)
		}
		if err != nil {
			return nil, corerr.New(corerr.InvalidConfig, fmt.Sprintf("stage %d", i), err)
		}
		stages = append(stages, s)
	}
	return stages, nil
}

func instantiate(ctx context.Context, d Descriptor, order uint32, keys KeyLookup) (Stage, error) {
	switch d.Kind {
	case KindCompression:
		level := paramInt(d.Parameters, "level", 0)
		return NewCompression(CompressionAlgorithm(d.Algorithm), level, order)
	case KindEncryption:
		keyID, _ := d.Parameters["key_id"].(string)
		if keys == nil {
			return nil, fmt.Errorf("encryption stage %q requires a key provider", keyID)
		}
		handle, err := keys(ctx, keyID)
		if err != nil {
			return nil, fmt.Errorf("resolving key %q: %w", keyID, err)
		}
		return NewEncryption(EncryptionAlgorithm(d.Algorithm), keyID, handle, order)
	case KindHashing:
		scope := HashScope(fmt.Sprint(d.Parameters["scope"]))
		s, err := NewHashing(HashAlgorithm(d.Algorithm), scope, order)
		if err != nil {
			return nil, err
		}
		if scope == ScopeWholeStream {
			return nil, fmt.Errorf("whole-stream hashing may only appear as a system-inserted stage, not in the user sequence")
		}
		return s, nil
	case KindPassThrough:
		return NewPassThrough(order), nil
	default:
		return nil, fmt.Errorf("unknown stage kind %q", d.Kind)
	}
}

func paramInt(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

// Descriptors returns the full, ordered processing_steps list (system +
// user stages), as stored in the container header.
func (p *Pipeline) Descriptors() []Descriptor {
	out := make([]Descriptor, len(p.stages))
	for i, s := range p.stages {
		out[i] = s.Descriptor()
	}
	return out
}

// InputHashAlgo and OutputHashAlgo report the algorithms chosen for the
// two system-inserted whole-stream stages, for the reader/writer to
// build their own Running hashers from (spec §4.3: those hashes are
// fused into the reader and writer, never dispatched to a worker).
func (p *Pipeline) InputHashAlgo() HashAlgorithm  { return p.inputHashAlgo }
func (p *Pipeline) OutputHashAlgo() HashAlgorithm { return p.outputHashAlgo }

// WorkerChain returns the middle stages a CPU worker actually dispatches
// per chunk: everything except the system-inserted input/output
// whole-stream hashing stages at position 0 and the tail.
func (p *Pipeline) WorkerChain() []Stage {
	if len(p.stages) <= 2 {
		return nil
	}
	return p.stages[1 : len(p.stages)-1]
}

// FinalUserStage returns the last stage of WorkerChain, used by the
// container writer to decide whether chunk frames carry an AEAD nonce
// prefix (SPEC_FULL.md §13.4).
func (p *Pipeline) FinalUserStage() (Stage, bool) {
	chain := p.WorkerChain()
	if len(chain) == 0 {
		return nil, false
	}
	return chain[len(chain)-1], true
}
