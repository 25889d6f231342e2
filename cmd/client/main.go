// Package main is the easyvault command-line client.
package main

import (
	"fmt"
	"os"

	"github.com/atinyakov/easyvault/cmd/client/commands"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	root := commands.NewRootCommand(commands.BuildInfo{Version: version, BuildDate: buildDate})
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
