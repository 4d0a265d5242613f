package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hambosto/adapipe/internal/admission"
	"github.com/hambosto/adapipe/internal/corerr"
	"github.com/hambosto/adapipe/internal/stage"
)

func TestRunPassThroughProducesValidContainer(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in.bin")
	content := bytes.Repeat([]byte("abcdefgh"), 5000)
	if err := os.WriteFile(inputPath, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	outputPath := filepath.Join(dir, "out.adapipe")

	pCfg := PipelineConfig{Stages: []stage.Descriptor{{Kind: stage.KindPassThrough, Algorithm: "identity", Order: 0}}}
	summary, err := Run(context.Background(), inputPath, outputPath, pCfg, RunConfig{ChunkSize: 65536, WorkerCount: 3, ChannelDepth: 4})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.State != StateSucceeded {
		t.Fatalf("expected Succeeded, got %v", summary.State)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		t.Fatalf("Stat output: %v", err)
	}
	f, err := os.Open(outputPath)
	if err != nil {
		t.Fatalf("Open output: %v", err)
	}
	defer f.Close()
	tail := make([]byte, 10)
	if _, err := f.ReadAt(tail, info.Size()-10); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(tail[2:]) != "ADAPIPE\x00" {
		t.Fatalf("trailing 8 bytes are not the ADAPIPE magic: %q", tail[2:])
	}
}

func TestRunRejectsEmptyPipeline(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in.bin")
	if err := os.WriteFile(inputPath, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Run(context.Background(), inputPath, filepath.Join(dir, "out.adapipe"), PipelineConfig{}, RunConfig{})
	if err == nil || corerr.KindOf(err) != corerr.InvalidConfig {
		t.Fatalf("expected InvalidConfig, got %v", err)
	}
}

func TestRunMissingInputIsIoError(t *testing.T) {
	dir := t.TempDir()
	pCfg := PipelineConfig{Stages: []stage.Descriptor{{Kind: stage.KindPassThrough, Algorithm: "identity", Order: 0}}}
	_, err := Run(context.Background(), filepath.Join(dir, "does-not-exist.bin"), filepath.Join(dir, "out.adapipe"), pCfg, RunConfig{})
	if err == nil || corerr.KindOf(err) != corerr.IoError {
		t.Fatalf("expected IoError, got %v", err)
	}
}

func TestRunLeavesNoTempFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in.bin")
	if err := os.WriteFile(inputPath, []byte("some bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	outputPath := filepath.Join(dir, "out.adapipe")

	pCfg := PipelineConfig{Stages: []stage.Descriptor{
		{Kind: stage.KindEncryption, Algorithm: string(stage.AlgoAES256GCM), Parameters: map[string]any{"key_id": "missing"}, Order: 0},
	}}
	_, err := Run(context.Background(), inputPath, outputPath, pCfg, RunConfig{})
	if err == nil {
		t.Fatalf("expected error for unresolvable key_id")
	}
	if _, statErr := os.Stat(outputPath + ".tmp"); !os.IsNotExist(statErr) {
		t.Fatalf("expected .tmp file to be cleaned up, stat err = %v", statErr)
	}
}

func TestRunReleasesAllAdmissionTokens(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in.bin")
	if err := os.WriteFile(inputPath, bytes.Repeat([]byte{0x9}, 200000), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	adm := admission.New(admission.Config{CPUTokens: 2, IOTokens: 2})
	pCfg := PipelineConfig{Stages: []stage.Descriptor{{Kind: stage.KindPassThrough, Algorithm: "identity", Order: 0}}}
	_, err := Run(context.Background(), inputPath, filepath.Join(dir, "out.adapipe"), pCfg, RunConfig{ChunkSize: 65536, WorkerCount: 2, Admission: adm})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if adm.CPUInUse() != 0 || adm.IOInUse() != 0 {
		t.Fatalf("expected all tokens released, CPU=%d IO=%d", adm.CPUInUse(), adm.IOInUse())
	}
}
