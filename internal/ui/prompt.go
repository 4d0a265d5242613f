package ui

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/hambosto/adapipe/internal/files"
)

// Prompt drives every interactive question cmd/adapipe asks.
type Prompt struct{}

func NewPrompt() *Prompt {
	return &Prompt{}
}

// ConfirmOverwrite asks whether an existing output path may be replaced.
func (p *Prompt) ConfirmOverwrite(path string) (bool, error) {
	var result bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Output file %s already exists. Overwrite?", path)).
		Value(&result).
		Run()
	return result, err
}

// GetPassword prompts for and confirms a password for a Process run.
func (p *Prompt) GetPassword() (string, error) {
	password, err := p.askPassword("Enter password")
	if err != nil {
		return "", fmt.Errorf("get password: %w", err)
	}
	confirm, err := p.askPassword("Confirm password")
	if err != nil {
		return "", fmt.Errorf("confirm password: %w", err)
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

// GetDecryptionPassword prompts for the password used to restore a
// container.
func (p *Prompt) GetDecryptionPassword() (string, error) {
	return p.askPassword("Enter password")
}

func (p *Prompt) askPassword(title string) (string, error) {
	var password string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&password).
		Run()
	return password, err
}

// ConfirmRemoval asks whether the source file should be deleted after a
// successful run, and if so, which disposal method to use.
func (p *Prompt) ConfirmRemoval(path, message string) (bool, files.DeleteOption, error) {
	var confirmed bool
	if err := huh.NewConfirm().
		Title(fmt.Sprintf("%s %s?", message, path)).
		Value(&confirmed).
		Run(); err != nil {
		return false, "", fmt.Errorf("confirm removal: %w", err)
	}
	if !confirmed {
		return false, "", nil
	}

	var option string
	if err := huh.NewSelect[string]().
		Title("Select delete method").
		Options(
			huh.NewOption(string(files.DeleteStandard), string(files.DeleteStandard)),
			huh.NewOption(string(files.DeleteSecure), string(files.DeleteSecure)),
		).
		Value(&option).
		Run(); err != nil {
		return false, "", fmt.Errorf("select delete method: %w", err)
	}
	return true, files.DeleteOption(option), nil
}

// GetMode asks the user whether to process or restore a file.
func (p *Prompt) GetMode() (files.Mode, error) {
	var mode string
	err := huh.NewSelect[string]().
		Title("Select operation").
		Options(
			huh.NewOption(string(files.ModeProcess), string(files.ModeProcess)),
			huh.NewOption(string(files.ModeRestore), string(files.ModeRestore)),
		).
		Value(&mode).
		Run()
	return files.Mode(mode), err
}

// ChooseFile lets the user pick one of the eligible files found on disk.
func (p *Prompt) ChooseFile(candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("no eligible files available")
	}
	opts := make([]huh.Option[string], len(candidates))
	for i, c := range candidates {
		opts[i] = huh.NewOption(c, c)
	}
	var selected string
	err := huh.NewSelect[string]().
		Title("Select file").
		Options(opts...).
		Value(&selected).
		Run()
	return selected, err
}

func (p *Prompt) ShowSuccess(message string) { fmt.Printf("✓ %s\n", message) }
func (p *Prompt) ShowWarning(message string) { fmt.Printf("⚠ %s\n", message) }
func (p *Prompt) ShowInfo(message string)    { fmt.Printf("ℹ %s\n", message) }
