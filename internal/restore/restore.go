// Package restore reconstructs the original file from an ADAPIPE
// container (spec.md §4.8).
package restore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hambosto/adapipe/internal/admission"
	"github.com/hambosto/adapipe/internal/container"
	"github.com/hambosto/adapipe/internal/corerr"
	"github.com/hambosto/adapipe/internal/metrics"
	"github.com/hambosto/adapipe/internal/obslog"
	"github.com/hambosto/adapipe/internal/stage"
)

// Options controls one restore run.
type Options struct {
	Overwrite bool
	Keys      stage.KeyLookup
	Admission *admission.Admission
	Metrics   metrics.Sink
	Logger    *zap.Logger
}

func (o *Options) normalize() {
	if o.Admission == nil {
		o.Admission = admission.New(admission.Config{})
	}
	o.Metrics = metrics.OrNoop(o.Metrics)
	o.Logger = obslog.OrNop(o.Logger)
}

// Summary reports the outcome of a successful restore.
type Summary struct {
	BytesWritten     uint64
	ChunksRestored   uint64
	OriginalFilename string
	Duration         time.Duration
}

// Restore parses containerPath's footer and header, rebuilds the
// reverse stage chain, streams every chunk frame through it, verifies
// the whole-stream hash against original_checksum, and atomically
// writes outputPath on success (spec.md §4.8).
func Restore(ctx context.Context, containerPath, outputPath string, opts Options) (Summary, error) {
	start := time.Now()
	opts.normalize()

	if !opts.Overwrite {
		if _, err := os.Stat(outputPath); err == nil {
			return Summary{}, corerr.New(corerr.InvalidConfig, "restore", fmt.Errorf("%s already exists", outputPath))
		}
	}

	in, err := os.Open(containerPath)
	if err != nil {
		return Summary{}, corerr.New(corerr.IoError, "open container", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return Summary{}, corerr.New(corerr.IoError, "stat container", err)
	}
	fileSize := info.Size()

	// State machine: Unopened -> FooterValidated
	tailSize := container.TailReadSize(fileSize)
	if _, err := in.Seek(fileSize-tailSize, io.SeekStart); err != nil {
		return Summary{}, corerr.New(corerr.IoError, "seek footer", err)
	}
	tail := make([]byte, tailSize)
	if _, err := io.ReadFull(in, tail); err != nil {
		return Summary{}, corerr.New(corerr.IoError, "read footer", err)
	}
	footer, err := container.ParseFooter(tail, fileSize)
	if err != nil {
		return Summary{}, err
	}

	// -> HeaderParsed
	if _, err := in.Seek(footer.HeaderOff, io.SeekStart); err != nil {
		return Summary{}, corerr.New(corerr.IoError, "seek header", err)
	}
	headerBytes := make([]byte, footer.HeaderLen)
	if _, err := io.ReadFull(in, headerBytes); err != nil {
		return Summary{}, corerr.New(corerr.IoError, "read header", err)
	}
	header, err := container.UnmarshalHeader(headerBytes)
	if err != nil {
		return Summary{}, err
	}

	allStages, err := stage.StagesFromDescriptors(ctx, header.Descriptors(), opts.Keys)
	if err != nil {
		return Summary{}, err
	}
	if len(allStages) < 2 {
		return Summary{}, corerr.New(corerr.InvalidFormat, "restore", fmt.Errorf("processing_steps too short"))
	}
	reverseChain := allStages[1 : len(allStages)-1]

	finalStage, hasFinal := lastOrNone(reverseChain)
	codec, err := container.NewFrameCodec(finalStage, hasFinal)
	if err != nil {
		return Summary{}, err
	}

	outputHash, err := stage.NewRunning(stage.HashAlgorithm(allStages[0].Descriptor().Algorithm))
	if err != nil {
		return Summary{}, err
	}

	tmpPath := outputPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return Summary{}, corerr.New(corerr.IoError, "create output", err)
	}
	cleanupTmp := func() {
		out.Close()
		os.Remove(tmpPath)
	}

	// -> StreamingChunks
	if _, err := in.Seek(0, io.SeekStart); err != nil {
		cleanupTmp()
		return Summary{}, corerr.New(corerr.IoError, "seek chunk region", err)
	}
	region := io.LimitReader(in, footer.ChunksSize)

	var chunksRestored uint64
	var bytesWritten uint64
	var sawFinalSeq bool
	for {
		frame, readErr := codec.ReadFrame(region)
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			cleanupTmp()
			return Summary{}, readErr
		}

		release, acqErr := opts.Admission.AcquireCPU(ctx)
		if acqErr != nil {
			cleanupTmp()
			return Summary{}, corerr.New(corerr.Cancelled, "restore", acqErr)
		}
		plaintext, revErr := stage.ApplyReverse(reverseChain, frame, &stage.Context{Seq: chunksRestored})
		release()
		if revErr != nil {
			cleanupTmp()
			return Summary{}, revErr
		}

		if _, err := out.Write(plaintext); err != nil {
			cleanupTmp()
			return Summary{}, corerr.New(corerr.IoError, "write restored chunk", err)
		}
		outputHash.Write(plaintext)
		bytesWritten += uint64(len(plaintext))
		chunksRestored++
		opts.Metrics.ChunksOut(1)
		opts.Metrics.BytesOut(uint64(len(plaintext)))
		sawFinalSeq = true
	}
	if !sawFinalSeq && header.ChunkCount > 0 {
		cleanupTmp()
		return Summary{}, corerr.New(corerr.InvalidFormat, "restore", fmt.Errorf("no chunks found in container"))
	}

	if got := outputHash.SumHex(); got != header.OriginalChecksum {
		cleanupTmp()
		return Summary{}, corerr.New(corerr.IntegrityFailure, "restore", fmt.Errorf("checksum mismatch: got %s want %s", got, header.OriginalChecksum))
	}

	if err := out.Sync(); err != nil {
		cleanupTmp()
		return Summary{}, corerr.New(corerr.IoError, "fsync output", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return Summary{}, corerr.New(corerr.IoError, "close output", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return Summary{}, corerr.New(corerr.IoError, "rename output", err)
	}

	opts.Logger.Debug("restore complete", zap.String("container", filepath.Base(containerPath)), zap.Uint64("chunks", chunksRestored))

	return Summary{
		BytesWritten:     bytesWritten,
		ChunksRestored:   chunksRestored,
		OriginalFilename: header.OriginalFilename,
		Duration:         time.Since(start),
	}, nil
}

func lastOrNone(chain []stage.Stage) (stage.Stage, bool) {
	if len(chain) == 0 {
		return nil, false
	}
	return chain[len(chain)-1], true
}
