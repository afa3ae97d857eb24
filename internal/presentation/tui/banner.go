package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Lectern banner followed by the version.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{" _              _                 ", "#34d399"},
		{"| |    ___  ___| |_ ___ _ __ _ __ ", "#2dd4bf"},
		{"| |   / _ \\/ __| __/ _ \\ '__| '_ \\", "#22d3ee"},
		{"| |__|  __/ (__| ||  __/ |  | | | |", "#38bdf8"},
		{"|_____\\___|\\___|\\__\\___|_|  |_| |_|", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  v"+version).Faint())
	fmt.Fprintln(w)
}

// Status renders a one-line, dimmed footer such as "route: quiz".
func Status(format string, args ...any) string {
	return termenv.String(fmt.Sprintf(format, args...)).Faint().String()
}

// Warn renders text in the warning color.
func Warn(text string) string {
	p := termenv.EnvColorProfile()
	return termenv.String(text).Foreground(p.Color("#f59e0b")).String()
}
