package executor

import "strings"

// JoinArgs turns argv-style input into one shell command line.
//
// A single argument is taken as an already-formed command line and passes
// through untouched, so `dt run "ls | head"` keeps its pipe. Multiple
// arguments are quoted individually so that `dt run echo "a b"` runs
// exactly what the user's shell would have.
func JoinArgs(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = ShellQuote(a)
	}
	return strings.Join(quoted, " ")
}

// ShellQuote single-quotes s unless it consists only of characters that
// are never special to a POSIX shell.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if isPlainWord(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isPlainWord(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("_-./:,@+%=", r):
		default:
			return false
		}
	}
	return true
}
