package diff

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// similarityThreshold is the minimum character ratio for a replaced line
// pair to be refined instead of shown as delete plus insert.
const similarityThreshold = 0.5

// maxRefineRunes skips character refinement for very long lines.
const maxRefineRunes = 4000

func aligned(la, lb []string) []Op {
	m := difflib.NewMatcherWithJunk(la, lb, false, nil)
	codes := m.GetOpCodes()

	deleted := map[string]bool{}
	inserted := map[string]bool{}
	for _, c := range codes {
		if c.Tag == 'd' || c.Tag == 'r' {
			for _, l := range la[c.I1:c.I2] {
				deleted[moveKey(l)] = true
			}
		}
		if c.Tag == 'i' || c.Tag == 'r' {
			for _, l := range lb[c.J1:c.J2] {
				inserted[moveKey(l)] = true
			}
		}
	}
	moved := func(l string, other map[string]bool) bool {
		return strings.TrimSpace(l) != "" && other[moveKey(l)]
	}

	b := &builder{}
	for _, c := range codes {
		switch c.Tag {
		case 'e':
			for _, l := range la[c.I1:c.I2] {
				b.add(Op{Kind: Equal, Text: l})
			}
		case 'd':
			for _, l := range la[c.I1:c.I2] {
				b.add(Op{Kind: Delete, Text: l, Moved: moved(l, inserted)})
			}
		case 'i':
			for _, l := range lb[c.J1:c.J2] {
				b.add(Op{Kind: Insert, Text: l, Moved: moved(l, deleted)})
			}
		case 'r':
			b.replace(la[c.I1:c.I2], lb[c.J1:c.J2], func(l string, del bool) bool {
				if del {
					return moved(l, inserted)
				}
				return moved(l, deleted)
			})
		}
	}
	return b.ops
}

// moveKey ignores the line terminator so a moved last line still matches.
func moveKey(l string) string {
	return strings.TrimSuffix(l, "\n")
}

type builder struct {
	ops []Op
}

func (b *builder) add(ops ...Op) {
	b.ops = append(b.ops, ops...)
}

// replace pairs the lines of a replaced block by position. Similar pairs
// are refined to characters; runs of dissimilar lines are emitted as all
// deletes followed by all inserts.
func (b *builder) replace(ra, rb []string, moved func(l string, del bool) bool) {
	var dels, inss []Op
	flush := func() {
		b.add(dels...)
		b.add(inss...)
		dels, inss = nil, nil
	}

	for i := 0; i < max(len(ra), len(rb)); i++ {
		if i < len(ra) && i < len(rb) && similar(ra[i], rb[i]) {
			flush()
			b.add(refine(ra[i], rb[i])...)
			continue
		}
		if i < len(ra) {
			dels = append(dels, Op{Kind: Delete, Text: ra[i], Moved: moved(ra[i], true)})
		}
		if i < len(rb) {
			inss = append(inss, Op{Kind: Insert, Text: rb[i], Moved: moved(rb[i], false)})
		}
	}
	flush()
}

// similar reports whether two lines share enough characters to be shown
// as an edit of one another.
func similar(a, b string) bool {
	ca, cb := runeStrings(a), runeStrings(b)
	if len(ca) > maxRefineRunes || len(cb) > maxRefineRunes {
		return false
	}
	m := difflib.NewMatcherWithJunk(ca, cb, false, nil)
	if m.QuickRatio() < similarityThreshold {
		return false
	}
	return m.Ratio() >= similarityThreshold
}

func runeStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// refine diffs two lines at character level.
func refine(a, b string) []Op {
	dmp := diffmatchpatch.New()
	// No timeout: the result must not depend on machine speed.
	dmp.DiffTimeout = 0

	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	ops := make([]Op, 0, len(diffs))
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			ops = append(ops, Op{Kind: Equal, Text: d.Text})
		case diffmatchpatch.DiffInsert:
			ops = append(ops, Op{Kind: Insert, Text: d.Text})
		case diffmatchpatch.DiffDelete:
			ops = append(ops, Op{Kind: Delete, Text: d.Text})
		}
	}
	return ops
}
