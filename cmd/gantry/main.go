// Command gantry builds, validates and inspects project schedules.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/gantry/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
