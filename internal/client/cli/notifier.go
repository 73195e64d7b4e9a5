package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/dmitrijs2005/docdash/internal/client/models"
)

// ColorNotifier prints success and error messages in color. Light themes get
// the plain palette, dark and system themes the high-intensity one.
type ColorNotifier struct {
	mu      sync.Mutex
	w       io.Writer
	success *color.Color
	failure *color.Color
	info    *color.Color
}

func NewColorNotifier(w io.Writer, theme models.Theme) *ColorNotifier {
	n := &ColorNotifier{w: w}
	n.SetTheme(theme)
	return n
}

// SetTheme switches the palette.
func (n *ColorNotifier) SetTheme(theme models.Theme) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if theme == models.ThemeLight {
		n.success = color.New(color.FgGreen)
		n.failure = color.New(color.FgRed)
		n.info = color.New(color.FgBlue)
		return
	}
	n.success = color.New(color.FgHiGreen)
	n.failure = color.New(color.FgHiRed)
	n.info = color.New(color.FgHiCyan)
}

func (n *ColorNotifier) Success(msg string) {
	n.print(func() *color.Color { return n.success }, "✔ "+msg)
}

func (n *ColorNotifier) Error(msg string) {
	n.print(func() *color.Color { return n.failure }, "✖ "+msg)
}

// Info is used for hints that are neither success nor failure.
func (n *ColorNotifier) Info(msg string) {
	n.print(func() *color.Color { return n.info }, msg)
}

// pick runs under the lock.
func (n *ColorNotifier) print(pick func() *color.Color, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := pick().Fprintln(n.w, msg); err != nil {
		fmt.Fprintln(n.w, msg)
	}
}
