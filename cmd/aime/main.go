// Command aime is the entry point for the ai-me personified conversational
// agent. It provides a CLI interface (via Cobra) and an HTTP server that
// answers questions as a specific person, grounded in that person's personal
// knowledge base.
package main

import (
	"fmt"
	"os"

	"github.com/byoung/ai-me/cmd/aime/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
