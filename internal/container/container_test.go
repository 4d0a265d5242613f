package container

import (
	"bytes"
	"testing"
	"time"

	"github.com/hambosto/adapipe/internal/corerr"
	"github.com/hambosto/adapipe/internal/stage"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := NewHeader(HeaderParams{
		AppVersion:       "0.1.0",
		OriginalFilename: "report.pdf",
		OriginalSize:     4096,
		OriginalChecksum: "abc123",
		OutputChecksum:   "def456",
		Steps: []stage.Descriptor{
			{Kind: stage.KindHashing, Algorithm: "sha256", Parameters: map[string]any{"scope": "whole-stream"}, Order: 0},
			{Kind: stage.KindCompression, Algorithm: "zstd", Parameters: map[string]any{"level": 3}, Order: 1},
			{Kind: stage.KindHashing, Algorithm: "sha256", Parameters: map[string]any{"scope": "whole-stream"}, Order: 2},
		},
		ChunkSize:   65536,
		ChunkCount:  1,
		ProcessedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PipelineID:  "run-1",
	})

	encoded, err := marshalHeader(h)
	if err != nil {
		t.Fatalf("marshalHeader: %v", err)
	}
	decoded, err := unmarshalHeader(encoded)
	if err != nil {
		t.Fatalf("unmarshalHeader: %v", err)
	}
	if decoded.OriginalFilename != h.OriginalFilename || decoded.ChunkCount != h.ChunkCount {
		t.Fatalf("round trip mismatch: got %+v", decoded)
	}
	if len(decoded.Descriptors()) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(decoded.Descriptors()))
	}
}

func TestUnmarshalHeaderRejectsMissingFields(t *testing.T) {
	_, err := unmarshalHeader([]byte(`{"format_version":1}`))
	if err == nil || corerr.KindOf(err) != corerr.InvalidFormat {
		t.Fatalf("expected InvalidFormat, got %v", err)
	}
}

func TestUnmarshalHeaderRejectsGarbageJSON(t *testing.T) {
	_, err := unmarshalHeader([]byte(`not json`))
	if err == nil || corerr.KindOf(err) != corerr.InvalidFormat {
		t.Fatalf("expected InvalidFormat, got %v", err)
	}
}

func TestFooterRoundTrip(t *testing.T) {
	headerBytes := []byte(`{"fake":"header"}`)
	footer := EncodeFooter(uint32(len(headerBytes)), FormatVersion1)

	chunkRegion := bytes.Repeat([]byte{0xAB}, 100)
	full := append(append([]byte{}, chunkRegion...), append(headerBytes, footer...)...)

	tail := full[len(full)-TailReadSize(int64(len(full))):]
	parsed, err := ParseFooter(tail, int64(len(full)))
	if err != nil {
		t.Fatalf("ParseFooter: %v", err)
	}
	if parsed.HeaderLen != uint32(len(headerBytes)) {
		t.Fatalf("HeaderLen = %d, want %d", parsed.HeaderLen, len(headerBytes))
	}
	if parsed.ChunksSize != int64(len(chunkRegion)) {
		t.Fatalf("ChunksSize = %d, want %d", parsed.ChunksSize, len(chunkRegion))
	}
}

func TestParseFooterRejectsBadMagic(t *testing.T) {
	tail := make([]byte, trailerSize)
	_, err := ParseFooter(tail, int64(trailerSize))
	if err == nil || corerr.KindOf(err) != corerr.InvalidFormat {
		t.Fatalf("expected InvalidFormat for zeroed tail, got %v", err)
	}
}

func TestParseFooterRejectsOversizedHeaderLen(t *testing.T) {
	footer := EncodeFooter(1<<20, FormatVersion1)
	_, err := ParseFooter(footer, int64(len(footer)))
	if err == nil || corerr.KindOf(err) != corerr.InvalidFormat {
		t.Fatalf("expected InvalidFormat for out-of-bounds header_len, got %v", err)
	}
}

func TestFrameCodecNonAEADRoundTrip(t *testing.T) {
	c := FrameCodec{}
	var buf bytes.Buffer
	payload := []byte("plain chunk bytes")
	if _, err := c.WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := c.ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("frame round trip mismatch")
	}
}

func TestFrameCodecAEADSplitsNoncePrefix(t *testing.T) {
	finalStage, err := stage.NewEncryption(stage.AlgoAES256GCM, "k1", testHandle{}, 5)
	if err != nil {
		t.Fatalf("NewEncryption: %v", err)
	}
	c, err := NewFrameCodec(finalStage, true)
	if err != nil {
		t.Fatalf("NewFrameCodec: %v", err)
	}

	stageOutput, err := finalStage.Forward([]byte("super secret"), &stage.Context{})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}

	var buf bytes.Buffer
	if _, err := c.WriteFrame(&buf, stageOutput); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	reassembled, err := c.ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(reassembled, stageOutput) {
		t.Fatalf("nonce split/reassemble mismatch")
	}

	plaintext, err := finalStage.Reverse(reassembled, &stage.Context{})
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if string(plaintext) != "super secret" {
		t.Fatalf("plaintext mismatch after frame round trip: %q", plaintext)
	}
}

type testHandle struct{}

func (testHandle) Bytes() []byte { return bytes.Repeat([]byte{0x5}, 32) }
