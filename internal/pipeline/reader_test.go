package pipeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/hambosto/adapipe/internal/admission"
	"github.com/hambosto/adapipe/internal/chunk"
	"github.com/hambosto/adapipe/internal/metrics"
	"github.com/hambosto/adapipe/internal/stage"
)

func drainReader(t *testing.T, data []byte, chunkSize uint32) []chunk.Chunk {
	t.Helper()
	raw := make(chan chunk.Chunk, 64)
	inputHash, err := stage.NewRunning(stage.AlgoSHA256)
	if err != nil {
		t.Fatalf("NewRunning: %v", err)
	}
	adm := admission.New(admission.Config{})
	cancel := admission.NewCancelToken(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- readChunks(context.Background(), bytes.NewReader(data), chunkSize, raw, inputHash, adm, cancel, metrics.Noop{})
	}()

	var chunks []chunk.Chunk
	for c := range raw {
		chunks = append(chunks, c)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("readChunks: %v", err)
	}
	return chunks
}

// SPEC_FULL.md §13.1: an input whose size is an exact nonzero multiple
// of chunk_size produces exactly one full final chunk, never a trailing
// empty one.
func TestReaderExactMultipleBoundary(t *testing.T) {
	chunkSize := uint32(16)
	data := bytes.Repeat([]byte{0x01}, int(chunkSize)*3)

	chunks := drainReader(t, data, chunkSize)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Seq != uint64(i) {
			t.Fatalf("chunk %d has seq %d", i, c.Seq)
		}
		final := i == 2
		if c.Final != final {
			t.Fatalf("chunk %d final = %v, want %v", i, c.Final, final)
		}
	}
}

func TestReaderEmptyInputProducesSingleEmptyFinalChunk(t *testing.T) {
	chunks := drainReader(t, nil, 16)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for empty input, got %d", len(chunks))
	}
	if !chunks[0].Final || chunks[0].Seq != 0 || len(chunks[0].Data) != 0 {
		t.Fatalf("expected single empty final chunk, got %+v", chunks[0])
	}
}

func TestReaderShortLastChunk(t *testing.T) {
	chunkSize := uint32(16)
	data := append(bytes.Repeat([]byte{0x02}, int(chunkSize)*2), []byte{0x03, 0x03, 0x03}...)

	chunks := drainReader(t, data, chunkSize)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[2].Final != true || len(chunks[2].Data) != 3 {
		t.Fatalf("expected short final chunk of length 3, got %+v", chunks[2])
	}
	if chunks[0].Final || chunks[1].Final {
		t.Fatalf("only the last chunk may be final")
	}
}

func TestReaderDenseSequenceNumbers(t *testing.T) {
	chunkSize := uint32(8)
	data := bytes.Repeat([]byte{0x07}, int(chunkSize)*5+1)
	chunks := drainReader(t, data, chunkSize)
	for i, c := range chunks {
		if c.Seq != uint64(i) {
			t.Fatalf("sequence gap at index %d: seq=%d", i, c.Seq)
		}
	}
}
