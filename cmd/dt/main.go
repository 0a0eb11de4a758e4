// Command dt records shell command runs and diffs them.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/dt/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		var exitErr *cli.ExitError
		quiet := errors.As(err, &exitErr) && exitErr.Message == "" && exitErr.Err == nil
		if !quiet {
			fmt.Fprintln(os.Stderr, "dt:", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
