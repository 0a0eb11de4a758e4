package record

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// shellOperators are the control and redirection operators whose spacing is
// canonicalized. Longest operators come first so "&&" wins over "&".
var shellOperators = []string{
	"&>>", "<<<",
	">>", "<<", "&&", "||", "|&", ">&", "<&", "&>", ">|", "<>", ";;",
	"|", "&", ";", ">", "<",
}

// Normalize canonicalizes command text so that equivalent spellings of a
// command share a bucket.
//
// Rules:
//   - NFC normalization, leading/trailing whitespace trimmed
//   - runs of unquoted whitespace (newlines included) become one space
//   - operators (pipes, logical operators, separators, redirections) are
//     surrounded by exactly one space
//   - a file-descriptor number glued to a redirection stays glued ("2>"),
//     and ">&"/"<&" absorb their target descriptor ("2>&1")
//   - quoted and backslash-escaped text is preserved verbatim
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(command string) string {
	tokens := tokenize(norm.NFC.String(command))
	return strings.Join(tokens, " ")
}

// tokenize splits command text into words and operators.
func tokenize(s string) []string {
	var (
		tokens []string
		word   strings.Builder
		rs     = []rune(s)
		inWord bool
	)

	flush := func() {
		if inWord {
			tokens = append(tokens, word.String())
			word.Reset()
			inWord = false
		}
	}

	for i := 0; i < len(rs); {
		r := rs[i]

		switch {
		case unicode.IsSpace(r):
			flush()
			i++

		case r == '\\':
			inWord = true
			word.WriteRune(r)
			if i+1 < len(rs) {
				word.WriteRune(rs[i+1])
				i += 2
			} else {
				i++
			}

		case r == '\'':
			inWord = true
			j := i + 1
			for j < len(rs) && rs[j] != '\'' {
				j++
			}
			if j < len(rs) {
				j++ // closing quote
			}
			word.WriteString(string(rs[i:j]))
			i = j

		case r == '"':
			inWord = true
			j := i + 1
			for j < len(rs) && rs[j] != '"' {
				if rs[j] == '\\' && j+1 < len(rs) {
					j++
				}
				j++
			}
			if j < len(rs) {
				j++
			}
			word.WriteString(string(rs[i:j]))
			i = j

		default:
			op := matchOperator(rs[i:])
			if op == "" {
				inWord = true
				word.WriteRune(r)
				i++
				continue
			}

			// "2>" keeps its descriptor: a purely numeric word glued to a
			// redirection is part of the operator.
			prefix := ""
			if inWord && isRedirection(op) && isDigits(word.String()) {
				prefix = word.String()
				word.Reset()
				inWord = false
			}
			flush()
			i += len([]rune(op))

			tok := prefix + op
			if op == ">&" || op == "<&" {
				j := i
				for j < len(rs) && unicode.IsSpace(rs[j]) {
					j++
				}
				k := j
				for k < len(rs) && (unicode.IsDigit(rs[k]) || (k == j && rs[k] == '-')) {
					k++
				}
				if k > j && (k == len(rs) || unicode.IsSpace(rs[k]) || matchOperator(rs[k:]) != "") {
					tok += string(rs[j:k])
					i = k
				}
			}
			tokens = append(tokens, tok)
		}
	}
	flush()

	return tokens
}

// matchOperator returns the longest operator at the start of rs, or "".
func matchOperator(rs []rune) string {
	for _, op := range shellOperators {
		ops := []rune(op)
		if len(ops) > len(rs) {
			continue
		}
		if string(rs[:len(ops)]) == op {
			return op
		}
	}
	return ""
}

func isRedirection(op string) bool {
	return strings.ContainsAny(op, "<>")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
