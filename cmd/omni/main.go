// Command omni resolves system manifests and runs gameplay-flow scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/omni/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
