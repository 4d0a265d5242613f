// Package pipeline implements the three-stage execution engine (spec.md
// §4.1-§4.4): a reader streaming fixed-size chunks, a CPU worker pool
// running the configured stage chain per chunk, and a writer that
// reorders out-of-order completions back into sequence and finalizes
// the container format.
package pipeline

import (
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/hambosto/adapipe/internal/admission"
	"github.com/hambosto/adapipe/internal/corerr"
	"github.com/hambosto/adapipe/internal/metrics"
	"github.com/hambosto/adapipe/internal/obslog"
	"github.com/hambosto/adapipe/internal/stage"
)

const (
	minChunkSize = 64 * 1024
	maxChunkSize = 512 * 1024 * 1024
	maxChannelDepth = 64
)

// RunConfig bounds the per-run tunables (spec.md §4.1).
type RunConfig struct {
	ChunkSize    uint32
	WorkerCount  int
	ChannelDepth int
	Admission    *admission.Admission
	Metrics      metrics.Sink
	Logger       *zap.Logger
	AppVersion   string
	PipelineID   string
}

func (c *RunConfig) normalize() error {
	if c.ChunkSize == 0 {
		c.ChunkSize = 4 * 1024 * 1024
	}
	if c.ChunkSize < minChunkSize || c.ChunkSize > maxChunkSize {
		return corerr.New(corerr.InvalidConfig, "run config", fmt.Errorf("chunk_size %d out of range [%d, %d]", c.ChunkSize, minChunkSize, maxChunkSize))
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = runtime.NumCPU()
	}
	if c.WorkerCount > runtime.NumCPU() {
		c.WorkerCount = runtime.NumCPU()
	}
	if c.ChannelDepth <= 0 {
		c.ChannelDepth = 8
	}
	if c.ChannelDepth > maxChannelDepth {
		return corerr.New(corerr.InvalidConfig, "run config", fmt.Errorf("channel_depth %d exceeds max %d", c.ChannelDepth, maxChannelDepth))
	}
	if c.Admission == nil {
		c.Admission = admission.New(admission.Config{})
	}
	c.Metrics = metrics.OrNoop(c.Metrics)
	c.Logger = obslog.OrNop(c.Logger)
	if c.AppVersion == "" {
		c.AppVersion = "0.1.0"
	}
	return nil
}

// PipelineConfig is the validated stage sequence plus the key lookup
// needed to instantiate encryption stages (spec.md §3 "Pipeline
// configuration").
type PipelineConfig struct {
	Stages         []stage.Descriptor
	Keys           stage.KeyLookup
	InputHashAlgo  stage.HashAlgorithm
	OutputHashAlgo stage.HashAlgorithm
	Metadata       map[string]any
}

// RunSummary is the result of a successful (or failed) run (spec.md
// §4.1: "RunSummary is returned with exact counts and durations").
type RunSummary struct {
	ChunksProcessed  uint64
	BytesIn          uint64
	BytesOut         uint64
	Duration         time.Duration
	OriginalChecksum string
	OutputChecksum   string
	State            RunState
	Err              error
}

// RunState is the run-level state machine (spec.md §4.1).
type RunState string

const (
	StateStarting   RunState = "starting"
	StateRunning    RunState = "running"
	StateFinalizing RunState = "finalizing"
	StateSucceeded  RunState = "succeeded"
	StateFailed     RunState = "failed"
	StateCancelled  RunState = "cancelled"
)
