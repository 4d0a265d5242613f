package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hambosto/adapipe/internal/admission"
	"github.com/hambosto/adapipe/internal/chunk"
	"github.com/hambosto/adapipe/internal/container"
	"github.com/hambosto/adapipe/internal/corerr"
	"github.com/hambosto/adapipe/internal/stage"
)

// Run executes one end-to-end processing pass: read inputPath, transform
// every chunk through pCfg's stage chain, and write a self-describing
// container to outputPath (spec.md §4.1). Output is staged at
// "<outputPath>.tmp" and atomically renamed to outputPath only on full
// success; the temp file is removed on any failure or cancellation.
func Run(ctx context.Context, inputPath, outputPath string, pCfg PipelineConfig, rCfg RunConfig) (RunSummary, error) {
	start := time.Now()
	if err := rCfg.normalize(); err != nil {
		return RunSummary{State: StateFailed, Err: err}, err
	}

	in, err := os.Open(inputPath)
	if err != nil {
		err = corerr.New(corerr.IoError, "open input", err)
		return RunSummary{State: StateFailed, Err: err}, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		err = corerr.New(corerr.IoError, "stat input", err)
		return RunSummary{State: StateFailed, Err: err}, err
	}
	if !info.Mode().IsRegular() {
		err = corerr.New(corerr.InvalidConfig, "open input", os.ErrInvalid)
		return RunSummary{State: StateFailed, Err: err}, err
	}

	outDir := filepath.Dir(outputPath)
	if _, statErr := os.Stat(outDir); statErr != nil {
		err = corerr.New(corerr.IoError, "output directory", statErr)
		return RunSummary{State: StateFailed, Err: err}, err
	}
	tmpPath := outputPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		err = corerr.New(corerr.IoError, "create output", err)
		return RunSummary{State: StateFailed, Err: err}, err
	}

	cleanupTmp := func() {
		out.Close()
		os.Remove(tmpPath)
	}

	pipe, err := stage.Build(ctx, pCfg.Stages, stage.BuildOptions{
		InputHashAlgo:  pCfg.InputHashAlgo,
		OutputHashAlgo: pCfg.OutputHashAlgo,
		Keys:           pCfg.Keys,
	})
	if err != nil {
		cleanupTmp()
		return RunSummary{State: StateFailed, Err: err}, err
	}

	finalStage, hasFinal := pipe.FinalUserStage()
	codec, err := container.NewFrameCodec(finalStage, hasFinal)
	if err != nil {
		cleanupTmp()
		return RunSummary{State: StateFailed, Err: err}, err
	}

	inputHash, err := stage.NewRunning(pipe.InputHashAlgo())
	if err != nil {
		cleanupTmp()
		return RunSummary{State: StateFailed, Err: err}, err
	}
	outputHash, err := stage.NewRunning(pipe.OutputHashAlgo())
	if err != nil {
		cleanupTmp()
		return RunSummary{State: StateFailed, Err: err}, err
	}

	cancel := admission.NewCancelToken(ctx)
	var g errgroup.Group

	raw := make(chan chunk.Chunk, rCfg.ChannelDepth)
	processed := make(chan chunk.Processed, rCfg.ChannelDepth)

	logger := rCfg.Logger.With(zap.String("pipeline_id", pCfg.pipelineIDOr(rCfg)))

	g.Go(func() error {
		err := readChunks(cancel.Context(), in, rCfg.ChunkSize, raw, inputHash, rCfg.Admission, cancel, rCfg.Metrics)
		if err != nil {
			cancel.Cancel(err)
			return err
		}
		return nil
	})

	workerWG := runWorkers(cancel.Context(), rCfg.WorkerCount, raw, processed, pipe.WorkerChain(), rCfg.Admission, cancel, rCfg.Metrics)
	g.Go(func() error {
		workerWG.Wait()
		close(processed)
		return nil
	})

	var wr writeResult
	g.Go(func() error {
		var werr error
		wr, werr = writeChunks(out, processed, codec, outputHash, rCfg.Admission, cancel, rCfg.Metrics)
		if werr != nil {
			cancel.Cancel(werr)
			return werr
		}
		return nil
	})

	runErr := g.Wait()

	if runErr != nil {
		cleanupTmp()
		state := StateFailed
		if corerr.KindOf(runErr) == corerr.Cancelled {
			state = StateCancelled
		}
		return RunSummary{State: state, Err: runErr, Duration: time.Since(start)}, runErr
	}
	if !wr.SawFinal {
		cleanupTmp()
		err := corerr.New(corerr.PartialFailure, "run", context.Canceled)
		return RunSummary{State: StateFailed, Err: err}, err
	}

	logger.Debug("chunks streamed", zap.Uint64("count", wr.ChunksWritten))

	header := container.NewHeader(container.HeaderParams{
		AppVersion:       rCfg.AppVersion,
		OriginalFilename: filepath.Base(inputPath),
		OriginalSize:     uint64(info.Size()),
		OriginalChecksum: inputHash.SumHex(),
		OutputChecksum:   wr.OutputChecksum,
		Steps:            pipe.Descriptors(),
		ChunkSize:        rCfg.ChunkSize,
		ChunkCount:       wr.ChunksWritten,
		ProcessedAt:      time.Now().UTC(),
		PipelineID:       pCfg.pipelineIDOr(rCfg),
		Metadata:         pCfg.Metadata,
	})

	if err := finalize(out, header); err != nil {
		cleanupTmp()
		return RunSummary{State: StateFailed, Err: err}, err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		err = corerr.New(corerr.IoError, "close output", err)
		return RunSummary{State: StateFailed, Err: err}, err
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		err = corerr.New(corerr.IoError, "rename output", err)
		return RunSummary{State: StateFailed, Err: err}, err
	}

	return RunSummary{
		ChunksProcessed:  wr.ChunksWritten,
		BytesIn:          uint64(info.Size()),
		BytesOut:         wr.BytesOut,
		Duration:         time.Since(start),
		OriginalChecksum: header.OriginalChecksum,
		OutputChecksum:   header.OutputChecksum,
		State:            StateSucceeded,
	}, nil
}

func (p PipelineConfig) pipelineIDOr(rCfg RunConfig) string {
	if rCfg.PipelineID != "" {
		return rCfg.PipelineID
	}
	return "run"
}

// finalize writes the JSON header and its fixed trailer to out and
// fsyncs, completing the Finalizing state (spec.md §4.1, §4.4).
func finalize(out *os.File, header container.Header) error {
	headerBytes, err := container.MarshalHeader(header)
	if err != nil {
		return err
	}
	if _, err := out.Write(headerBytes); err != nil {
		return corerr.New(corerr.IoError, "write header", err)
	}
	footer := container.EncodeFooter(uint32(len(headerBytes)), header.FormatVersion)
	if _, err := out.Write(footer); err != nil {
		return corerr.New(corerr.IoError, "write footer", err)
	}
	if err := out.Sync(); err != nil {
		return corerr.New(corerr.IoError, "fsync output", err)
	}
	return nil
}
