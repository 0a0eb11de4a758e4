package render

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/roach88/dt/internal/record"
)

// BucketView is one command with the executions to show for it, most
// recent first.
type BucketView struct {
	Digest     string             `json:"digest"`
	Command    string             `json:"command"`
	Total      int                `json:"total"`
	Executions []record.Execution `json:"executions"`
}

// Buckets prints a listing: the command, then one row per execution.
//
//	echo hi  (2 runs, 1a2b3c4d5e6f)
//	  b  2024-03-01 12:05:00  now              exit 0      1.5s  3 B
//	  a  2024-03-01 12:00:00  5 minutes ago    exit 0      1.5s  3 B
func (p *Printer) Buckets(views []BucketView) {
	t := p.theme
	for i, v := range views {
		if i > 0 {
			p.println("")
		}

		meta := "(" + plural(v.Total, "run", "runs") + ", " + record.ShortDigest(v.Digest) + ")"
		p.println(t.Paint(t.Command, Visible(v.Command)) + "  " + t.Paint(t.Muted, meta))

		width := 0
		for _, e := range v.Executions {
			width = max(width, len(e.ShortCode))
		}
		for _, e := range v.Executions {
			p.println(p.executionRow(e, width))
		}
		if hidden := v.Total - len(v.Executions); hidden > 0 {
			p.println(t.Paint(t.Muted, "  ... "+plural(hidden, "older run", "older runs")))
		}
	}
}

func (p *Printer) executionRow(e record.Execution, codeWidth int) string {
	t := p.theme

	exit := pad("exit "+strconv.Itoa(e.ExitCode), 8)
	exitStyle := t.ExitOK
	if e.ExitCode != 0 {
		exitStyle = t.ExitFail
	}

	cols := []string{
		t.Paint(t.Code, pad(e.ShortCode, codeWidth)),
		p.timestamp(e.Timestamp),
		t.Paint(t.Muted, pad(humanize.RelTime(e.Timestamp, p.now, "ago", "from now"), 15)),
		t.Paint(exitStyle, exit),
		padLeft(Duration(e.Duration), 6),
		humanize.Bytes(uint64(max(e.StdoutSize, 0))),
	}
	row := "  " + strings.Join(cols, "  ")
	if e.Archived {
		row += "  " + t.Paint(t.Muted, "[archived]")
	}
	return row
}

// Runs prints a flat listing, one row per execution with its command last.
func (p *Printer) Runs(execs []record.Execution) {
	t := p.theme
	width := 0
	for _, e := range execs {
		width = max(width, len(e.ShortCode))
	}
	for _, e := range execs {
		p.println(p.executionRow(e, width) + "  " + t.Paint(t.Command, Visible(e.Command)))
	}
}

// Execution prints one saved run as "<code>  <timestamp>  exit <n>  <duration>".
func (p *Printer) Execution(e record.Execution) {
	t := p.theme
	exitStyle := t.ExitOK
	if e.ExitCode != 0 {
		exitStyle = t.ExitFail
	}
	p.println(t.Paint(t.Code, e.ShortCode) + "  " + p.timestamp(e.Timestamp) + "  " +
		t.Paint(exitStyle, "exit "+strconv.Itoa(e.ExitCode)) + "  " + Duration(e.Duration))
}

func pad(s string, width int) string {
	if n := width - len([]rune(s)); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

func padLeft(s string, width int) string {
	if n := width - len([]rune(s)); n > 0 {
		return strings.Repeat(" ", n) + s
	}
	return s
}
