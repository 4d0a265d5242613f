package restore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hambosto/adapipe/internal/corerr"
	"github.com/hambosto/adapipe/internal/pipeline"
	"github.com/hambosto/adapipe/internal/stage"
)

type fixedKey struct{ b []byte }

func (f fixedKey) Bytes() []byte { return f.b }

func fixedKeyLookup(ctx context.Context, keyID string) (stage.KeyHandle, error) {
	return fixedKey{b: bytes.Repeat([]byte{0x11}, 32)}, nil
}

func TestRunThenRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input.bin")
	content := bytes.Repeat([]byte("hello adapipe "), 10000)
	if err := os.WriteFile(inputPath, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	containerPath := filepath.Join(dir, "out.adapipe")
	pCfg := pipeline.PipelineConfig{
		Stages: []stage.Descriptor{
			{Kind: stage.KindCompression, Algorithm: string(stage.AlgoZstd), Parameters: map[string]any{"level": 3}, Order: 0},
			{Kind: stage.KindEncryption, Algorithm: string(stage.AlgoAES256GCM), Parameters: map[string]any{"key_id": "k1"}, Order: 1},
		},
		Keys: fixedKeyLookup,
	}
	rCfg := pipeline.RunConfig{ChunkSize: 65536, WorkerCount: 2, ChannelDepth: 4}

	summary, err := pipeline.Run(context.Background(), inputPath, containerPath, pCfg, rCfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.State != pipeline.StateSucceeded {
		t.Fatalf("expected Succeeded, got %v", summary.State)
	}

	restoredPath := filepath.Join(dir, "restored.bin")
	restoreSummary, err := Restore(context.Background(), containerPath, restoredPath, Options{Keys: fixedKeyLookup})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restoreSummary.BytesWritten != uint64(len(content)) {
		t.Fatalf("BytesWritten = %d, want %d", restoreSummary.BytesWritten, len(content))
	}

	got, err := os.ReadFile(restoredPath)
	if err != nil {
		t.Fatalf("ReadFile restored: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("restored content mismatch")
	}
}

func TestRestoreRejectsExistingOutputWithoutOverwrite(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input.bin")
	if err := os.WriteFile(inputPath, []byte("small file"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	containerPath := filepath.Join(dir, "out.adapipe")
	pCfg := pipeline.PipelineConfig{
		Stages: []stage.Descriptor{{Kind: stage.KindPassThrough, Algorithm: "identity", Order: 0}},
	}
	if _, err := pipeline.Run(context.Background(), inputPath, containerPath, pCfg, pipeline.RunConfig{ChunkSize: 65536}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	restoredPath := filepath.Join(dir, "restored.bin")
	if err := os.WriteFile(restoredPath, []byte("pre-existing"), 0o644); err != nil {
		t.Fatalf("WriteFile restored: %v", err)
	}

	_, err := Restore(context.Background(), containerPath, restoredPath, Options{})
	if err == nil || corerr.KindOf(err) != corerr.InvalidConfig {
		t.Fatalf("expected InvalidConfig for existing output, got %v", err)
	}
}

func TestRestoreDetectsCorruptContainer(t *testing.T) {
	dir := t.TempDir()
	badPath := filepath.Join(dir, "bad.adapipe")
	if err := os.WriteFile(badPath, []byte("not a real container"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Restore(context.Background(), badPath, filepath.Join(dir, "out.bin"), Options{})
	if err == nil || corerr.KindOf(err) != corerr.InvalidFormat {
		t.Fatalf("expected InvalidFormat, got %v", err)
	}
}
