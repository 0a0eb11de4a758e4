package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"simple", []string{"ls", "-al"}, "ls -al"},
		{"spaces", []string{"echo", "hello world"}, "echo 'hello world'"},
		{"single quote", []string{"printf", "%s", "it's ok"}, `printf %s 'it'\''s ok'`},
		{"single arg passthrough", []string{"ls -l | head"}, "ls -l | head"},
		{"empty token", []string{"printf", ""}, "printf ''"},
		{"pipe char is quoted", []string{"echo", "a|b"}, "echo 'a|b'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, JoinArgs(tt.args))
		})
	}
}

func TestShellQuote(t *testing.T) {
	for _, w := range []string{"abc", "a.b", "/usr/bin", "x=1", "50%"} {
		assert.Equal(t, w, ShellQuote(w), "plain word %q must pass through", w)
	}
	assert.Equal(t, "'user@host:~'", ShellQuote("user@host:~"))
	assert.Equal(t, "'$HOME'", ShellQuote("$HOME"))
}
