// Package main provides the memoir-voice CLI.
//
// Usage:
//
//	memoir-voice [flags]
//	memoir-voice schema
//
// Without flags it runs a spoken interview against the configured provider.
// --text switches to typed input and --test runs a single synthesis smoke
// test. Configuration comes from an optional YAML file (--config or
// MEMOIR_VOICE_CONFIG) and VOICE_* environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/koscakluka/memoir-voice/cmd/memoir-voice/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
