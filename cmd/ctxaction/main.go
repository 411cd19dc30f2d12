// Command ctxaction exercises a contextaction runtime from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/randalmurphal/contextaction/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
