// Package render turns executions and diff operations into terminal text.
//
// Output is plain when color is off, so it can be piped and compared
// byte for byte. Control characters in captured output are made visible
// here; the diff engine itself never alters payload text beyond UTF-8
// sanitization.
package render

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// ColorEnabled decides whether output to w is colored for a display.color
// mode: "always", "never", or "auto" (color on a terminal unless NO_COLOR
// is set).
func ColorEnabled(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Theme holds the styles used by a Printer.
type Theme struct {
	color bool

	Command  lipgloss.Style
	Muted    lipgloss.Style
	Code     lipgloss.Style
	ExitOK   lipgloss.Style
	ExitFail lipgloss.Style

	Delete       lipgloss.Style
	Insert       lipgloss.Style
	DeleteMoved  lipgloss.Style
	InsertMoved  lipgloss.Style
	DeleteSpan   lipgloss.Style
	InsertSpan   lipgloss.Style
	HeaderDelete lipgloss.Style
	HeaderInsert lipgloss.Style
}

// NewTheme builds styles bound to w. With color false every style renders
// its input unchanged.
func NewTheme(w io.Writer, color bool) Theme {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}

	red := lipgloss.Color("1")
	green := lipgloss.Color("2")
	yellow := lipgloss.Color("3")
	magenta := lipgloss.Color("5")
	cyan := lipgloss.Color("6")
	gray := lipgloss.Color("8")

	return Theme{
		color: color,

		Command:  r.NewStyle().Bold(true),
		Muted:    r.NewStyle().Foreground(gray),
		Code:     r.NewStyle().Foreground(yellow).Bold(true),
		ExitOK:   r.NewStyle().Foreground(green),
		ExitFail: r.NewStyle().Foreground(red).Bold(true),

		Delete:       r.NewStyle().Foreground(red),
		Insert:       r.NewStyle().Foreground(green),
		DeleteMoved:  r.NewStyle().Foreground(magenta),
		InsertMoved:  r.NewStyle().Foreground(cyan),
		DeleteSpan:   r.NewStyle().Foreground(red).Reverse(true),
		InsertSpan:   r.NewStyle().Foreground(green).Reverse(true),
		HeaderDelete: r.NewStyle().Foreground(red).Bold(true),
		HeaderInsert: r.NewStyle().Foreground(green).Bold(true),
	}
}

// Paint renders s in style. Plain themes return s unchanged.
func (t Theme) Paint(style lipgloss.Style, s string) string {
	if !t.color || s == "" {
		return s
	}
	return style.TabWidth(lipgloss.NoTabConversion).Render(s)
}
