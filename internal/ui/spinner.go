package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A6E22E"))
)

// KeySpinner shows an indeterminate spinner while an Argon2id key
// derivation runs — there is no byte count to report, only elapsed time.
type KeySpinner struct {
	program *tea.Program
	label   string
	done    chan struct{}
}

type keySpinnerModel struct {
	spinner spinner.Model
	label   string
	start   time.Time
	done    chan struct{}
}

type tickDoneMsg struct{}

func NewKeySpinner(label string) *KeySpinner {
	return &KeySpinner{label: label, done: make(chan struct{})}
}

func (k *KeySpinner) Start() {
	s := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle))
	m := keySpinnerModel{spinner: s, label: k.label + "...", start: time.Now(), done: k.done}
	k.program = tea.NewProgram(m)
	go func() { _, _ = k.program.Run() }()
}

func (k *KeySpinner) Stop() {
	close(k.done)
	if k.program != nil {
		k.program.Quit()
	}
}

func (m keySpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForDone(m.done))
}

func waitForDone(done chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return tickDoneMsg{}
	}
}

func (m keySpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case tickDoneMsg:
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m keySpinnerModel) View() string {
	return fmt.Sprintf("%s %s (%s)\n", m.spinner.View(), labelStyle.Render(m.label), time.Since(m.start).Round(time.Second))
}
