// Command adapipe interactively processes or restores files through an
// adaptive compression/encryption/hashing pipeline, producing or
// consuming the self-describing ADAPIPE container format.
package main

import (
	"fmt"
	"os"

	"github.com/hambosto/adapipe/internal/cliapp"
	"github.com/hambosto/adapipe/internal/files"
	"github.com/hambosto/adapipe/internal/ui"
)

// Config holds application configuration.
type Config struct {
	ExcludedDirs    []string
	ExcludedExts    []string
	OverwritePasses int
}

func DefaultConfig() *Config {
	return &Config{
		ExcludedDirs:    []string{"vendor/", "node_modules/", ".git", ".github"},
		ExcludedExts:    []string{".go", "go.mod", "go.sum", ".nix", ".gitignore"},
		OverwritePasses: 3,
	}
}

// Dependencies holds all application dependencies.
type Dependencies struct {
	Terminal    *ui.Terminal
	Prompt      *ui.Prompt
	FileManager *files.Manager
	Finder      *files.Finder
	App         *cliapp.App
}

func NewDependencies(config *Config) *Dependencies {
	terminal := ui.NewTerminal()
	prompt := ui.NewPrompt()
	fileManager := files.NewManager(config.OverwritePasses)
	finder := files.NewFinder(config.ExcludedDirs, config.ExcludedExts)
	app := cliapp.New(fileManager, prompt)

	return &Dependencies{
		Terminal:    terminal,
		Prompt:      prompt,
		FileManager: fileManager,
		Finder:      finder,
		App:         app,
	}
}

// Application encapsulates the main application logic.
type Application struct {
	deps   *Dependencies
	config *Config
}

func NewApplication(config *Config) *Application {
	return &Application{deps: NewDependencies(config), config: config}
}

func (a *Application) initializeTerminal() {
	a.deps.Terminal.Clear()
	a.deps.Terminal.MoveTopLeft()
}

func (a *Application) getEligibleFiles(mode files.Mode) ([]string, error) {
	eligible, err := a.deps.Finder.FindEligible(mode)
	if err != nil {
		return nil, fmt.Errorf("failed to find eligible files: %w", err)
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("no eligible files found")
	}
	return eligible, nil
}

func (a *Application) Run() error {
	a.initializeTerminal()

	mode, err := a.deps.Prompt.GetMode()
	if err != nil {
		return fmt.Errorf("failed to get operation: %w", err)
	}

	eligible, err := a.getEligibleFiles(mode)
	if err != nil {
		return err
	}

	selected, err := a.deps.Prompt.ChooseFile(eligible)
	if err != nil {
		return fmt.Errorf("failed to select file: %w", err)
	}

	switch mode {
	case files.ModeProcess:
		err = a.deps.App.ProcessFile(selected)
	case files.ModeRestore:
		err = a.deps.App.RestoreFile(selected)
	default:
		return fmt.Errorf("unsupported mode: %s", mode)
	}
	if err != nil {
		return fmt.Errorf("failed to process file %q: %w", selected, err)
	}
	return nil
}

func main() {
	app := NewApplication(DefaultConfig())
	if err := app.Run(); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}
