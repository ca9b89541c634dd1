// citectl is the operator tool for a citewatch server.
package main

import (
	"fmt"
	"os"

	"citewatch/internal/cli"
)

// version is stamped at build time with -ldflags.
var version = "dev"

func main() {
	if err := cli.Run(version); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
