package render

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Printer writes human-readable output.
type Printer struct {
	w     io.Writer
	theme Theme
	now   time.Time
	loc   *time.Location
	err   error
}

// Option configures a Printer.
type Option func(*Printer)

// WithNow fixes the reference time for relative timestamps.
func WithNow(now time.Time) Option {
	return func(p *Printer) { p.now = now }
}

// WithLocation sets the zone absolute timestamps are shown in.
func WithLocation(loc *time.Location) Option {
	return func(p *Printer) { p.loc = loc }
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, color bool, opts ...Option) *Printer {
	p := &Printer{
		w:     w,
		theme: NewTheme(w, color),
		now:   time.Now(),
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Err returns the first write error.
func (p *Printer) Err() error {
	return p.err
}

func (p *Printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) println(s string) {
	p.printf("%s\n", s)
}

func (p *Printer) timestamp(t time.Time) string {
	return t.In(p.loc).Format("2006-01-02 15:04:05")
}

// Visible makes control characters printable: tabs stay, carriage returns
// and other C0/C1 controls become caret or \u escapes, DEL becomes ^?.
func Visible(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\t':
			b.WriteRune(r)
		case r < 0x20:
			b.WriteByte('^')
			b.WriteRune(r + 0x40)
		case r == 0x7f:
			b.WriteString("^?")
		case r >= 0x80 && r < 0xa0:
			fmt.Fprintf(&b, "\\u%04x", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Duration formats a run time compactly: 850ms, 1.5s, 2m03s, 1h02m.
func Duration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
