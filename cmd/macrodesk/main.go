// Package main provides the macrodesk command-line interface.
package main

import (
	"os"

	"github.com/macrodesk-labs/macrodesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
