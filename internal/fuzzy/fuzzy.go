package fuzzy

import (
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/dt/internal/shortcode"
)

// Tier bases. Scores within a tier stay below tierWidth.
const (
	tierWidth       = 1_000_000
	tierSubsequence = 1 * tierWidth
	tierNumeric     = 2 * tierWidth
	tierPrefix      = 3 * tierWidth
	tierExact       = 4 * tierWidth
)

// maxScoredRunes bounds the text length fed to the subsequence scorer.
const maxScoredRunes = 1024

// Candidate is one searchable entry.
type Candidate struct {
	// ID lets callers map a Match back to their own record.
	ID string

	// Text is what the query is matched against (the command).
	Text string

	// ShortCode is consulted by all-digit queries. May be empty.
	ShortCode string

	// Timestamp breaks ties: newer ranks first.
	Timestamp time.Time
}

// Match is a ranked candidate.
type Match struct {
	Candidate Candidate
	Score     int
}

// Score scores text against query. ok is false when there is no match.
// An empty query matches everything with score 0.
func Score(query, text string) (score int, ok bool) {
	return ScoreCandidate(query, Candidate{Text: text})
}

// ScoreCandidate scores a candidate, including short-code equality for
// all-digit queries.
func ScoreCandidate(query string, c Candidate) (int, bool) {
	if query == "" {
		return 0, true
	}
	if s, ok := exactScore(query, c.Text); ok {
		return s, true
	}
	if s, ok := prefixScore(query, c.Text); ok {
		return s, true
	}
	if s, ok := numericScore(query, c); ok {
		return s, true
	}
	if s, ok := subsequenceScore(query, c.Text); ok {
		return s, true
	}
	return 0, false
}

// Rank filters candidates that match query and orders them by score,
// descending. Ties, and every candidate when query is empty, are ordered
// newest first. Returns an empty slice when nothing matches.
func Rank(query string, candidates []Candidate) []Match {
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if s, ok := ScoreCandidate(query, c); ok {
			matches = append(matches, Match{Candidate: c, Score: s})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Candidate.Timestamp.After(matches[j].Candidate.Timestamp)
	})
	return matches
}

// exactScore handles tier 1.
func exactScore(query, text string) (int, bool) {
	idx := strings.Index(text, query)
	if idx < 0 {
		return 0, false
	}
	pos := utf8.RuneCountInString(text[:idx])
	length := utf8.RuneCountInString(query)
	return tierExact + min(length, 500)*1000 - min(pos, 999), true
}

// prefixScore handles tier 2. The text itself counts as word 0.
func prefixScore(query, text string) (int, bool) {
	q := strings.ToLower(query)
	length := utf8.RuneCountInString(query)

	if strings.HasPrefix(strings.ToLower(text), q) {
		return tierPrefix + min(length, 500)*1000, true
	}
	for i, word := range splitWords(text) {
		if strings.HasPrefix(strings.ToLower(word), q) {
			return tierPrefix + min(length, 500)*1000 - min(i+1, 999), true
		}
	}
	return 0, false
}

// numericScore handles tier 3.
func numericScore(query string, c Candidate) (int, bool) {
	if !isDigits(query) {
		return 0, false
	}
	want := trimZeros(query)

	if c.ShortCode != "" {
		if n, err := shortcode.Decode(c.ShortCode); err == nil && trimZeros(strconv.FormatInt(n, 10)) == want {
			return tierNumeric + 500_000, true
		}
	}
	for i, num := range embeddedNumbers(c.Text) {
		if trimZeros(num) == want {
			return tierNumeric + 100_000 - min(i, 999), true
		}
	}
	return 0, false
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, isSeparator)
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune("/-_.:,=|;&()[]{}<>'\"`", r)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// embeddedNumbers returns the maximal ASCII digit runs in text.
func embeddedNumbers(text string) []string {
	var nums []string
	start := -1
	for i := 0; i <= len(text); i++ {
		digit := i < len(text) && text[i] >= '0' && text[i] <= '9'
		switch {
		case digit && start < 0:
			start = i
		case !digit && start >= 0:
			nums = append(nums, text[start:i])
			start = -1
		}
	}
	return nums
}

// trimZeros drops leading zeros so arbitrarily long digit strings compare
// numerically without overflow.
func trimZeros(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" {
		return "0"
	}
	return t
}
