// Command authsession is a terminal sign-in screen built on the authsession
// client: it prompts for credentials, shows progress and messages, and prints
// the navigation the screen would perform.
package main

import (
	"fmt"
	"os"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
