// Package main is the branchreel command.
package main

import (
	"fmt"
	"os"

	"github.com/stwalsh4118/branchreel/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
