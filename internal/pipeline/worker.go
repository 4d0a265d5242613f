package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/hambosto/adapipe/internal/admission"
	"github.com/hambosto/adapipe/internal/chunk"
	"github.com/hambosto/adapipe/internal/metrics"
	"github.com/hambosto/adapipe/internal/stage"
)

// runWorkers starts count goroutines, each pulling chunks from raw,
// running them through chain forward, and sending the ProcessedChunk
// into processed (spec.md §4.3). Parallelism is strictly across chunks;
// a single chunk is never split across workers, and workers are
// interchangeable with no affinity to sequence number.
func runWorkers(ctx context.Context, count int, raw <-chan chunk.Chunk, processed chan<- chunk.Processed, chain []stage.Stage, adm *admission.Admission, cancel *admission.CancelToken, sink metrics.Sink) *sync.WaitGroup {
	var wg sync.WaitGroup
	wg.Add(count)
	for i := 0; i < count; i++ {
		go func() {
			defer wg.Done()
			workerLoop(ctx, raw, processed, chain, adm, cancel, sink)
		}()
	}
	return &wg
}

func workerLoop(ctx context.Context, raw <-chan chunk.Chunk, processed chan<- chunk.Processed, chain []stage.Stage, adm *admission.Admission, cancel *admission.CancelToken, sink metrics.Sink) {
	for {
		select {
		case c, ok := <-raw:
			if !ok {
				return
			}
			result := processChunk(ctx, c, chain, adm, cancel, sink)
			select {
			case processed <- result:
			case <-cancel.Done():
				return
			}
			if result.Err != nil {
				return
			}
		case <-cancel.Done():
			return
		}
	}
}

func processChunk(ctx context.Context, c chunk.Chunk, chain []stage.Stage, adm *admission.Admission, cancel *admission.CancelToken, sink metrics.Sink) chunk.Processed {
	release, err := adm.AcquireCPU(ctx)
	if err != nil {
		return chunk.Processed{Seq: c.Seq, Final: c.Final, OrigLen: c.Len(), Err: err}
	}
	defer release()

	var contentHash []byte
	stageCtx := &stage.Context{
		Seq: c.Seq,
		OnStageTimed: func(kind, algorithm string, nanos int64) {
			sink.StageDuration(kind, algorithm, time.Duration(nanos))
		},
		OnChunkHash: func(sum []byte) { contentHash = sum },
	}

	start := time.Now()
	out, err := stage.ApplyForward(chain, c.Data, stageCtx)
	sink.ChunkDuration(time.Since(start))
	if err != nil {
		sink.Errors(1)
		return chunk.Processed{Seq: c.Seq, Final: c.Final, OrigLen: c.Len(), Err: err}
	}

	return chunk.Processed{Seq: c.Seq, Data: out, Final: c.Final, ContentHash: contentHash, OrigLen: c.Len()}
}
