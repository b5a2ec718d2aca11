// Command livestore inspects and edits a livestore directory.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/livestore/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "livestore:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
