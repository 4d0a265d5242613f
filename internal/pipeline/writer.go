package pipeline

import (
	"bytes"
	"io"
	"sort"

	"github.com/hambosto/adapipe/internal/admission"
	"github.com/hambosto/adapipe/internal/chunk"
	"github.com/hambosto/adapipe/internal/container"
	"github.com/hambosto/adapipe/internal/corerr"
	"github.com/hambosto/adapipe/internal/metrics"
	"github.com/hambosto/adapipe/internal/stage"
)

// reorderBuffer resequences out-of-order ProcessedChunk arrivals back
// into strict sequence order, the writer-side counterpart of the
// teacher's worker.resultBuffer. Its maximum outstanding size is bounded
// by worker_count + channel_depth (spec.md §4.4).
type reorderBuffer struct {
	pending map[uint64]chunk.Processed
	next    uint64
}

func newReorderBuffer() *reorderBuffer {
	return &reorderBuffer{pending: make(map[uint64]chunk.Processed)}
}

func (b *reorderBuffer) add(p chunk.Processed) []chunk.Processed {
	b.pending[p.Seq] = p
	var ready []chunk.Processed
	for {
		next, ok := b.pending[b.next]
		if !ok {
			break
		}
		ready = append(ready, next)
		delete(b.pending, b.next)
		b.next++
	}
	return ready
}

func (b *reorderBuffer) flushRemaining() []chunk.Processed {
	if len(b.pending) == 0 {
		return nil
	}
	seqs := make([]uint64, 0, len(b.pending))
	for s := range b.pending {
		seqs = append(seqs, s)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	out := make([]chunk.Processed, len(seqs))
	for i, s := range seqs {
		out[i] = b.pending[s]
	}
	return out
}

// writeResult is the product of the writer task: the accounted byte and
// chunk totals, the output checksum, and whether the final chunk was
// flushed. The caller builds the header from it.
type writeResult struct {
	BytesOut         uint64
	ChunksWritten    uint64
	OutputChecksum   string
	SawFinal         bool
}

// writeChunks drains processed, reordering arrivals into strict sequence
// order, writing each frame through codec, and feeding outputHash with
// the bytes actually written (spec.md §4.4). It does not write the
// header/footer; the caller does that once SawFinal is true.
func writeChunks(w io.Writer, processed <-chan chunk.Processed, codec container.FrameCodec, outputHash *stage.Running, adm *admission.Admission, cancel *admission.CancelToken, sink metrics.Sink) (writeResult, error) {
	buf := newReorderBuffer()
	var result writeResult

	flush := func(items []chunk.Processed) error {
		for _, p := range items {
			if p.Err != nil {
				return p.Err
			}
			var frame bytes.Buffer
			if _, err := codec.WriteFrame(&frame, p.Data); err != nil {
				return err
			}
			release, err := adm.AcquireIO(cancel.Context())
			if err != nil {
				if cancel.IsCancelled() {
					return corerr.New(corerr.Cancelled, "write chunk", cancel.Cause())
				}
				return corerr.New(corerr.ResourceExhausted, "write chunk: io admission", err)
			}
			n, writeErr := w.Write(frame.Bytes())
			release()
			adm.ReleaseMemory(int64(p.OrigLen))
			if writeErr != nil {
				return corerr.New(corerr.IoError, "write chunk frame", writeErr)
			}
			outputHash.Write(frame.Bytes())
			result.BytesOut += uint64(n)
			result.ChunksWritten++
			sink.ChunksOut(1)
			sink.BytesOut(uint64(n))
			if p.Final {
				result.SawFinal = true
			}
		}
		return nil
	}

	for {
		select {
		case p, ok := <-processed:
			if !ok {
				if err := flush(buf.flushRemaining()); err != nil {
					return result, err
				}
				result.OutputChecksum = outputHash.SumHex()
				return result, nil
			}
			ready := buf.add(p)
			if err := flush(ready); err != nil {
				return result, err
			}
			if result.SawFinal {
				result.OutputChecksum = outputHash.SumHex()
				return result, nil
			}
		case <-cancel.Done():
			return result, corerr.New(corerr.Cancelled, "write chunk", cancel.Cause())
		}
	}
}
