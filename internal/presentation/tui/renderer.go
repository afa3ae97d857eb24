package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Renderer turns assistant replies (Markdown) into terminal output.
type Renderer func(markdown string) (string, error)

// NewRenderer returns a glamour renderer wrapping at width.
// A width of zero or less uses the default of 80 columns.
func NewRenderer(width int) Renderer {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return Plain
	}
	return func(markdown string) (string, error) {
		out, err := r.Render(markdown)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(out, "\n") + "\n", nil
	}
}

// Plain returns the text as is, newline terminated.
func Plain(markdown string) (string, error) {
	return strings.TrimRight(markdown, "\n") + "\n", nil
}

// ForStdout picks glamour when stdout is a terminal and plain output otherwise.
func ForStdout() Renderer {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return Plain
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		width = 0
	}
	return NewRenderer(width)
}
