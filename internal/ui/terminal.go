package ui

import (
	"github.com/inancgumus/screen"
)

// Terminal provides methods for terminal screen manipulation.
type Terminal struct{}

func NewTerminal() *Terminal {
	return &Terminal{}
}

func (t *Terminal) Clear() {
	screen.Clear()
}

func (t *Terminal) MoveTopLeft() {
	screen.MoveTopLeft()
}
