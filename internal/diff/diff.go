// Package diff compares two captured outputs line by line.
//
// Compute returns an ordered list of operations such that concatenating
// the Equal and Delete texts reproduces the first input, and concatenating
// the Equal and Insert texts reproduces the second. Inputs that are not
// valid UTF-8 are first passed through Sanitize, so the guarantee holds
// against the sanitized text.
package diff

import (
	"strings"
)

// Kind classifies an operation.
type Kind int

const (
	Equal Kind = iota
	Insert
	Delete
)

func (k Kind) String() string {
	switch k {
	case Equal:
		return "equal"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	}
	return "unknown"
}

// Op is one diff operation. Text is a whole line (including its newline)
// or, inside a refined line, a fragment of one.
type Op struct {
	Kind Kind
	Text string

	// Moved marks a whole deleted line that also appears as an inserted
	// line, or the reverse.
	Moved bool
}

// Mode selects the alignment strategy.
type Mode int

const (
	// ModeAligned aligns lines by longest matching blocks, so lines may
	// match out of position, and refines similar replaced lines to
	// character level.
	ModeAligned Mode = iota

	// ModeLinewise compares line i of one input with line i of the other.
	ModeLinewise
)

// ParseMode maps "aligned" and "linewise" to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(s) {
	case "", "aligned", "default":
		return ModeAligned, true
	case "linewise":
		return ModeLinewise, true
	}
	return ModeAligned, false
}

func (m Mode) String() string {
	if m == ModeLinewise {
		return "linewise"
	}
	return "aligned"
}

// Options adjusts a comparison.
type Options struct {
	// IgnoreTrailingNewline strips one trailing "\n" from both inputs
	// before comparing. Otherwise a missing final newline is a difference.
	IgnoreTrailingNewline bool
}

// Compute diffs a against b.
func Compute(a, b string, mode Mode, opts Options) []Op {
	a, b = Sanitize(a), Sanitize(b)
	if opts.IgnoreTrailingNewline {
		a = strings.TrimSuffix(a, "\n")
		b = strings.TrimSuffix(b, "\n")
	}

	la, lb := SplitLines(a), SplitLines(b)
	if mode == ModeLinewise {
		return linewise(la, lb)
	}
	return aligned(la, lb)
}

// Sanitize replaces each run of invalid UTF-8 bytes with U+FFFD. Valid
// input is returned unchanged. The result depends only on the input.
func Sanitize(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// SplitLines splits s after every "\n". The final element lacks a newline
// when s does not end with one. An empty string has no lines.
func SplitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func linewise(la, lb []string) []Op {
	ops := make([]Op, 0, max(len(la), len(lb))+1)
	for i := 0; i < max(len(la), len(lb)); i++ {
		switch {
		case i < len(la) && i < len(lb) && la[i] == lb[i]:
			ops = append(ops, Op{Kind: Equal, Text: la[i]})
		case i < len(la) && i < len(lb):
			ops = append(ops, Op{Kind: Delete, Text: la[i]}, Op{Kind: Insert, Text: lb[i]})
		case i < len(la):
			ops = append(ops, Op{Kind: Delete, Text: la[i]})
		default:
			ops = append(ops, Op{Kind: Insert, Text: lb[i]})
		}
	}
	return ops
}

// Stats counts operations by kind.
type Stats struct {
	Equal   int `json:"equal"`
	Inserts int `json:"inserts"`
	Deletes int `json:"deletes"`
}

// Changed reports whether any insert or delete was counted.
func (s Stats) Changed() bool {
	return s.Inserts > 0 || s.Deletes > 0
}

// Count tallies ops.
func Count(ops []Op) Stats {
	var s Stats
	for _, op := range ops {
		switch op.Kind {
		case Equal:
			s.Equal++
		case Insert:
			s.Inserts++
		case Delete:
			s.Deletes++
		}
	}
	return s
}

// Same reports whether ops describe identical inputs.
func Same(ops []Op) bool {
	return !Count(ops).Changed()
}

// Reconstruct rebuilds both inputs from ops.
func Reconstruct(ops []Op) (a, b string) {
	var sa, sb strings.Builder
	for _, op := range ops {
		switch op.Kind {
		case Equal:
			sa.WriteString(op.Text)
			sb.WriteString(op.Text)
		case Delete:
			sa.WriteString(op.Text)
		case Insert:
			sb.WriteString(op.Text)
		}
	}
	return sa.String(), sb.String()
}
