package render

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/dt/internal/diff"
	"github.com/roach88/dt/internal/record"
)

// DiffSummary counts rendered lines.
type DiffSummary struct {
	Inserted int `json:"inserted"`
	Deleted  int `json:"deleted"`
}

// segment is a run of text inside one display line.
type segment struct {
	kind diff.Kind
	text string
}

type displayLine struct {
	segs []segment
}

func (l *displayLine) text() string {
	var b strings.Builder
	for _, s := range l.segs {
		b.WriteString(s.text)
	}
	return b.String()
}

func (l *displayLine) complete() bool {
	return len(l.segs) > 0 && strings.HasSuffix(l.segs[len(l.segs)-1].text, "\n")
}

func (l *displayLine) changed() bool {
	for _, s := range l.segs {
		if s.kind != diff.Equal {
			return true
		}
	}
	return false
}

// DiffHeader prints the two execution headers.
func (p *Printer) DiffHeader(from, to record.Execution, stream record.Stream) {
	t := p.theme
	p.println(t.Paint(t.Command, Visible(from.Command)))
	p.println(t.Paint(t.HeaderDelete, "--- "+p.headerLine(from, stream)))
	p.println(t.Paint(t.HeaderInsert, "+++ "+p.headerLine(to, stream)))
}

func (p *Printer) headerLine(e record.Execution, stream record.Stream) string {
	return e.ShortCode + "  " + p.timestamp(e.Timestamp) + "  exit " + strconv.Itoa(e.ExitCode) + "  (" + string(stream) + ")"
}

// Diff prints ops one display line at a time: " " for unchanged lines,
// "-" and "+" for removed and added ones. Lines refined to character level
// are shown as a "-" and "+" pair with the changed spans highlighted.
func (p *Printer) Diff(ops []diff.Op) DiffSummary {
	var (
		sum            DiffSummary
		a, b           displayLine
		aMoved, bMoved bool
	)

	flush := func() {
		switch {
		case len(a.segs) > 0 && len(b.segs) > 0 && !a.changed() && !b.changed():
			p.line(" ", a, lipgloss.Style{}, lipgloss.Style{}, false)
		default:
			if len(a.segs) > 0 {
				p.diffLine("-", a, aMoved, true)
				sum.Deleted++
			}
			if len(b.segs) > 0 {
				p.diffLine("+", b, bMoved, false)
				sum.Inserted++
			}
		}
		a, b = displayLine{}, displayLine{}
		aMoved, bMoved = false, false
	}

	for _, op := range ops {
		toA := op.Kind != diff.Insert
		toB := op.Kind != diff.Delete
		if (toA && a.complete()) || (toB && b.complete()) {
			flush()
		}

		seg := segment{kind: op.Kind, text: op.Text}
		if toA {
			a.segs = append(a.segs, seg)
			aMoved = aMoved || op.Moved
		}
		if toB {
			b.segs = append(b.segs, seg)
			bMoved = bMoved || op.Moved
		}

		switch {
		case a.complete() && b.complete():
			flush()
		case op.Kind == diff.Delete && a.complete() && len(b.segs) == 0:
			flush()
		case op.Kind == diff.Insert && b.complete() && len(a.segs) == 0:
			flush()
		}
	}
	flush()

	return sum
}

func (p *Printer) diffLine(prefix string, l displayLine, moved, del bool) {
	t := p.theme
	base, span := t.Insert, t.InsertSpan
	if del {
		base, span = t.Delete, t.DeleteSpan
	}
	if moved {
		base = t.InsertMoved
		if del {
			base = t.DeleteMoved
		}
	}
	p.line(prefix, l, base, span, true)
}

// line prints one display line. Segments that differ get the span style
// when the line also has unchanged segments.
func (p *Printer) line(prefix string, l displayLine, base, span lipgloss.Style, styled bool) {
	t := p.theme
	full := l.text()
	newline := strings.HasSuffix(full, "\n")

	var b strings.Builder
	if styled {
		b.WriteString(t.Paint(base, prefix+" "))
	} else {
		b.WriteString(prefix + " ")
	}
	partial := l.changed() && hasEqual(l)
	for _, s := range l.segs {
		text := Visible(strings.TrimSuffix(s.text, "\n"))
		switch {
		case !styled:
			b.WriteString(text)
		case partial && s.kind != diff.Equal:
			b.WriteString(t.Paint(span, text))
		default:
			b.WriteString(t.Paint(base, text))
		}
	}
	p.println(b.String())
	if !newline {
		p.println(t.Paint(t.Muted, `\ No newline at end of output`))
	}
}

func hasEqual(l displayLine) bool {
	for _, s := range l.segs {
		if s.kind == diff.Equal {
			return true
		}
	}
	return false
}

// DiffFooter prints the change summary.
func (p *Printer) DiffFooter(sum DiffSummary) {
	t := p.theme
	if sum.Inserted == 0 && sum.Deleted == 0 {
		p.println(t.Paint(t.Muted, "no differences"))
		return
	}
	p.println(t.Paint(t.Muted,
		plural(sum.Inserted, "line added", "lines added")+", "+plural(sum.Deleted, "line removed", "lines removed")))
}
