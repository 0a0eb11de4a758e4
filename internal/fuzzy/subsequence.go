package fuzzy

import (
	"unicode"
)

// Subsequence scoring weights, modeled on skim and fzf.
const (
	scoreMatch        = 16
	scoreGapStart     = -3
	scoreGapExtension = -1

	bonusBoundary    = scoreMatch / 2
	bonusCamel       = bonusBoundary - 1
	bonusConsecutive = -(scoreGapStart + scoreGapExtension) * 2

	// The first query character counts double at a boundary.
	bonusFirstCharMultiplier = 2
)

// minScore marks an impossible alignment.
const minScore = -1 << 30

// subsequenceScore handles tier 4. Query characters must appear in text in
// order. Case-insensitive unless the query contains an uppercase letter.
func subsequenceScore(query, text string) (int, bool) {
	q := []rune(query)
	t := []rune(text)
	if len(t) > maxScoredRunes {
		t = t[:maxScoredRunes]
	}
	if len(q) == 0 || len(q) > len(t) {
		return 0, false
	}

	caseSensitive := hasUpper(q)
	eq := func(a, b rune) bool {
		if caseSensitive {
			return a == b
		}
		return unicode.ToLower(a) == unicode.ToLower(b)
	}

	bonus := make([]int, len(t))
	for j := range t {
		bonus[j] = positionBonus(t, j)
	}

	// prev[j] is the best score with q[i-1] matched at t[j].
	prev := make([]int, len(t))
	cur := make([]int, len(t))
	for j := range t {
		prev[j] = minScore
		if eq(q[0], t[j]) {
			prev[j] = scoreMatch + bonus[j]*bonusFirstCharMultiplier
		}
	}

	for i := 1; i < len(q); i++ {
		// gap is the best score of q[i-1] matched at k <= j-2, with the
		// gap penalty up to position j already applied.
		gap := minScore
		for j := range t {
			cur[j] = minScore
			if j >= 2 && prev[j-2] > minScore {
				gap = max(gap+scoreGapExtension, prev[j-2]+scoreGapStart)
			} else if gap > minScore {
				gap += scoreGapExtension
			}

			if j == 0 || !eq(q[i], t[j]) {
				continue
			}

			best := minScore
			if prev[j-1] > minScore {
				best = prev[j-1] + bonusConsecutive
			}
			if gap > minScore {
				best = max(best, gap)
			}
			if best > minScore {
				cur[j] = best + scoreMatch + bonus[j]
			}
		}
		prev, cur = cur, prev
	}

	best := minScore
	for _, s := range prev {
		best = max(best, s)
	}
	if best == minScore {
		return 0, false
	}

	// Map into the tier, keeping order.
	scaled := best*100 + tierWidth/2
	scaled = max(0, min(scaled, tierWidth-1))
	return tierSubsequence + scaled, true
}

// positionBonus rewards matches at the start of a word or a camelCase hump.
func positionBonus(t []rune, j int) int {
	if j == 0 {
		return bonusBoundary
	}
	p, c := t[j-1], t[j]
	switch {
	case isSeparator(p) && !isSeparator(c):
		return bonusBoundary
	case unicode.IsLower(p) && unicode.IsUpper(c):
		return bonusCamel
	case unicode.IsLetter(p) && unicode.IsDigit(c):
		return bonusCamel
	}
	return 0
}

func hasUpper(rs []rune) bool {
	for _, r := range rs {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
