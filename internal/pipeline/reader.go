package pipeline

import (
	"context"
	"io"

	"github.com/hambosto/adapipe/internal/admission"
	"github.com/hambosto/adapipe/internal/chunk"
	"github.com/hambosto/adapipe/internal/corerr"
	"github.com/hambosto/adapipe/internal/metrics"
	"github.com/hambosto/adapipe/internal/stage"
)

// readChunks streams r into fixed-size chunks onto raw, assigning dense
// monotonic sequence numbers starting at 0, and updates inputHash with
// the plaintext of every chunk before sending it (spec.md §4.2: "the
// input-hash stage is logically fused here").
//
// Exact-chunk-size-boundary policy (SPEC_FULL.md §13.1): the last *full*
// chunk read is marked final when EOF coincides with a chunk boundary; a
// genuinely empty input produces exactly one empty final chunk; no
// implementation ever emits a trailing empty chunk after a full one.
func readChunks(ctx context.Context, r io.Reader, chunkSize uint32, raw chan<- chunk.Chunk, inputHash *stage.Running, adm *admission.Admission, cancel *admission.CancelToken, sink metrics.Sink) error {
	defer close(raw)

	readOne := func() (data []byte, short bool, eof bool, err error) {
		buf := make([]byte, chunkSize)
		n, rerr := io.ReadFull(r, buf)
		switch rerr {
		case nil:
			return buf[:n], false, false, nil
		case io.ErrUnexpectedEOF:
			return buf[:n], true, false, nil
		case io.EOF:
			return nil, false, true, nil
		default:
			return nil, false, false, corerr.New(corerr.IoError, "read chunk", rerr)
		}
	}

	pending, pendingShort, pendingEOF, err := readOne()
	if err != nil {
		return err
	}
	if pendingEOF {
		// Genuinely empty input: emit a single empty final chunk
		// (SPEC_FULL.md §13.1).
		return sendChunk(ctx, chunk.Chunk{Seq: 0, Data: nil, Final: true}, raw, inputHash, adm, cancel, sink)
	}

	var seq uint64
	for {
		if pendingShort {
			return sendChunk(ctx, chunk.Chunk{Seq: seq, Data: pending, Final: true}, raw, inputHash, adm, cancel, sink)
		}

		next, nextShort, nextEOF, nextErr := readOne()
		if nextErr != nil {
			return nextErr
		}
		if nextEOF {
			// pending exactly filled the buffer and nothing follows: it
			// is the last full chunk, an exact multiple of chunk_size
			// (SPEC_FULL.md §13.1) — no trailing empty chunk is emitted.
			return sendChunk(ctx, chunk.Chunk{Seq: seq, Data: pending, Final: true}, raw, inputHash, adm, cancel, sink)
		}

		if sendErr := sendChunk(ctx, chunk.Chunk{Seq: seq, Data: pending, Final: false}, raw, inputHash, adm, cancel, sink); sendErr != nil {
			return sendErr
		}
		seq++
		pending, pendingShort = next, nextShort
	}
}

func sendChunk(ctx context.Context, c chunk.Chunk, raw chan<- chunk.Chunk, inputHash *stage.Running, adm *admission.Admission, cancel *admission.CancelToken, sink metrics.Sink) error {
	if err := adm.ReserveMemory(ctx, int64(c.Len())); err != nil {
		if cancel.IsCancelled() {
			return corerr.New(corerr.Cancelled, "read chunk", cancel.Cause())
		}
		return corerr.New(corerr.ResourceExhausted, "read chunk: memory admission", err)
	}
	inputHash.Write(c.Data)

	select {
	case raw <- c:
		sink.ChunksIn(1)
		sink.BytesIn(uint64(len(c.Data)))
		return nil
	case <-cancel.Done():
		adm.ReleaseMemory(int64(c.Len()))
		return corerr.New(corerr.Cancelled, "read chunk", cancel.Cause())
	}
}
