// Package main is the entry point for the ali-bastion binary.
//
// ali-bastion keeps a registry of named SSH hosts and launches the system SSH
// client against one of them, either by name or through an interactive picker
// (built with Bubble Tea). The CLI is built with Cobra.
//
// Usage:
//
//	ali-bastion                       # pick a host interactively and connect
//	ali-bastion connect web           # connect to a registered host
//	ali-bastion add -n web -H 10.0.0.5 -u deploy
//	ali-bastion list
//
// The command tree lives in internal/cli. This file only runs it and reports
// the final error.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/treykane/ali-bastion/internal/cli"
	"github.com/treykane/ali-bastion/internal/security"
)

func main() {
	cmd := cli.NewRootCommand()

	// RunE errors are printed here with the home directory redacted; the
	// unredacted detail is only visible with --debug.
	if err := cmd.Execute(); err != nil {
		slog.Debug("command failed", "error", security.DebugMessage(err))
		fmt.Fprintln(os.Stderr, "Error:", security.UserMessage(err, true))
		os.Exit(1)
	}
}
