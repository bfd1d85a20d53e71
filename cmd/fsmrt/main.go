// Command fsmrt runs table-driven state machines defined in CUE.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/fsmrt/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
