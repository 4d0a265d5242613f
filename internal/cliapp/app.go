// Package cliapp wires cmd/adapipe's interactive flow to the pipeline
// and restore engines: password collection, stage-chain selection,
// progress reporting, and source-file disposal (SPEC_FULL.md §12).
package cliapp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hambosto/adapipe/internal/container"
	"github.com/hambosto/adapipe/internal/corerr"
	"github.com/hambosto/adapipe/internal/files"
	"github.com/hambosto/adapipe/internal/keyprovider"
	"github.com/hambosto/adapipe/internal/pipeline"
	"github.com/hambosto/adapipe/internal/restore"
	"github.com/hambosto/adapipe/internal/stage"
	"github.com/hambosto/adapipe/internal/ui"
)

// metadataKey is where a container's key-derivation parameters live in
// the header's free-form metadata object (keyprovider.DerivationMetadata
// doc comment).
const metadataKey = "key_derivation"

// contentKeyID is the single key_id this CLI ever requests; a future
// multi-recipient mode would derive one key_id per recipient instead.
const contentKeyID = "content"

// App drives one interactive process-or-restore session.
type App struct {
	fileManager *files.Manager
	prompt      *ui.Prompt
}

func New(fm *files.Manager, p *ui.Prompt) *App {
	return &App{fileManager: fm, prompt: p}
}

// ProcessFile compresses, encrypts, and containerizes inputPath.
func (a *App) ProcessFile(inputPath string) error {
	outputPath := inputPath + files.Extension

	if err := a.fileManager.ValidatePath(inputPath, true); err != nil {
		return fmt.Errorf("source validation failed: %w", err)
	}
	if err := a.fileManager.ValidatePath(outputPath, false); err != nil {
		confirm, cerr := a.prompt.ConfirmOverwrite(outputPath)
		if cerr != nil || !confirm {
			return fmt.Errorf("operation cancelled")
		}
	}

	password, err := a.prompt.GetPassword()
	if err != nil {
		return fmt.Errorf("password prompt failed: %w", err)
	}

	provider, err := keyprovider.NewPasswordProvider([]byte(password), keyprovider.DefaultArgon2Params())
	if err != nil {
		return fmt.Errorf("key provider: %w", err)
	}
	defer provider.Close() //nolint:errcheck

	spinner := ui.NewKeySpinner("Deriving key")
	spinner.Start()
	meta, err := provider.Derive(contentKeyID)
	spinner.Stop()
	if err != nil {
		return fmt.Errorf("key derivation failed: %w", err)
	}

	info, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	sink := ui.NewProgressSink(info.Size(), fmt.Sprintf("Processing %s", inputPath))
	pCfg := pipeline.PipelineConfig{
		Stages: []stage.Descriptor{
			{Kind: stage.KindCompression, Algorithm: string(stage.AlgoZstd), Parameters: map[string]any{"level": 3}, Order: 0},
			{Kind: stage.KindEncryption, Algorithm: string(stage.AlgoAES256GCM), Parameters: map[string]any{"key_id": contentKeyID}, Order: 1},
		},
		Keys:     provider.Lookup,
		Metadata: map[string]any{metadataKey: map[string]keyprovider.DerivationMetadata{contentKeyID: meta}},
	}

	summary, err := pipeline.Run(context.Background(), inputPath, outputPath, pCfg, pipeline.RunConfig{Metrics: sink})
	_ = sink.Finish()
	if err != nil {
		return err
	}

	a.prompt.ShowSuccess(fmt.Sprintf("processed in %s: %s", summary.Duration.Round(time.Millisecond), outputPath))
	return a.maybeRemoveSource(inputPath, "Delete original file")
}

// RestoreFile reconstructs the original plaintext from an ADAPIPE
// container at inputPath.
func (a *App) RestoreFile(inputPath string) error {
	outputPath := strings.TrimSuffix(inputPath, files.Extension)

	if err := a.fileManager.ValidatePath(inputPath, true); err != nil {
		return fmt.Errorf("source validation failed: %w", err)
	}
	overwrite := false
	if err := a.fileManager.ValidatePath(outputPath, false); err != nil {
		confirm, cerr := a.prompt.ConfirmOverwrite(outputPath)
		if cerr != nil || !confirm {
			return fmt.Errorf("operation cancelled")
		}
		overwrite = true
	}

	header, err := container.ReadHeader(inputPath)
	if err != nil {
		return fmt.Errorf("read container header: %w", err)
	}
	derivations, err := derivationsFromMetadata(header.Metadata)
	if err != nil {
		return fmt.Errorf("read key derivation metadata: %w", err)
	}

	password, err := a.prompt.GetDecryptionPassword()
	if err != nil {
		return fmt.Errorf("password prompt failed: %w", err)
	}

	provider, err := keyprovider.NewPasswordProvider([]byte(password), keyprovider.DefaultArgon2Params())
	if err != nil {
		return fmt.Errorf("key provider: %w", err)
	}
	defer provider.Close() //nolint:errcheck

	spinner := ui.NewKeySpinner("Verifying password")
	spinner.Start()
	for keyID, meta := range derivations {
		if loadErr := provider.LoadFromMetadata(keyID, meta); loadErr != nil {
			spinner.Stop()
			if corerr.KindOf(loadErr) == corerr.IntegrityFailure {
				return fmt.Errorf("wrong password")
			}
			return loadErr
		}
	}
	spinner.Stop()

	sink := ui.NewProgressSink(int64(header.OriginalSize), fmt.Sprintf("Restoring %s", inputPath))
	opts := restore.Options{Overwrite: overwrite, Keys: provider.Lookup, Metrics: sink}

	summary, err := restore.Restore(context.Background(), inputPath, outputPath, opts)
	_ = sink.Finish()
	if err != nil {
		return err
	}

	a.prompt.ShowSuccess(fmt.Sprintf("restored in %s: %s", summary.Duration.Round(time.Millisecond), outputPath))
	return a.maybeRemoveSource(inputPath, "Delete container file")
}

func (a *App) maybeRemoveSource(path, message string) error {
	shouldDelete, option, err := a.prompt.ConfirmRemoval(path, message)
	if err != nil || !shouldDelete {
		return nil
	}
	if err := a.fileManager.Remove(path, option); err != nil {
		return fmt.Errorf("source deletion failed: %w", err)
	}
	return nil
}

// derivationsFromMetadata pulls the key_derivation object back out of a
// header's loosely typed metadata map. json.Unmarshal decoded it into
// map[string]any the first time, so it is re-marshaled and decoded into
// the concrete type here rather than type-asserted field by field.
func derivationsFromMetadata(metadata map[string]any) (map[string]keyprovider.DerivationMetadata, error) {
	raw, ok := metadata[metadataKey]
	if !ok {
		return nil, fmt.Errorf("container has no %s metadata", metadataKey)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var out map[string]keyprovider.DerivationMetadata
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
