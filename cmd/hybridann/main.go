// Command hybridann is a CLI front end for the engine package, grounded on
// the retrieved pack's spf13/cobra command layout (one file per
// subcommand, package-level flag variables, init() registration).
package main

import (
	"fmt"
	"os"

	"github.com/hybridann/hybridann/cmd/hybridann/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
