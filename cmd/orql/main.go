// Command orql compiles ORQL queries into SQL and runs them.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/orql/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands print their own formatted errors; only flag and argument
		// errors reach here unreported.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
