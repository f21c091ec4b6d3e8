// Package cli provides the command-line interface for signup-runner.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to config.yaml (default: ./config.yaml when present)",
		EnvVars: []string{"SIGNUP_RUNNER_CONFIG"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Log to stderr instead of the log file",
		EnvVars: []string{"SIGNUP_RUNNER_VERBOSE"},
	},
}

// Execute runs the CLI.
func Execute() {
	app := &cli.App{
		Name:    "signup-runner",
		Usage:   "Automated account signup runner for Android devices",
		Version: Version,
		Description: `Signup Runner drives the account-creation flow of the target app
on a connected Android device, from the welcome screen through inbox
verification, and records every step.

Examples:
  signup-runner run --first-name John --last-name Smith --date-of-birth 1995-05-15
  signup-runner run --resume 6f1c2a3e
  signup-runner demo
  signup-runner serve --port 8080
  signup-runner list`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			demoCommand,
			serveCommand,
			statusCommand,
			listCommand,
			cancelCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
