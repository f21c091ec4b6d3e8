package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/signup-runner/pkg/account"
	"github.com/devicelab-dev/signup-runner/pkg/core"
)

const timePrecision = 10 * time.Millisecond

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Create one account end to end",
	Description: `Run the full signup flow on the connected device and print the
per-step results. Email and password are generated from the name
unless given explicitly.

Examples:
  signup-runner run --first-name John --last-name Smith --date-of-birth 1995-05-15
  signup-runner run --first-name Jane --last-name Doe --date-of-birth 1990-01-31 --email jane@outlook.com

  # Continue an interrupted run from its last checkpoint
  signup-runner run --resume <run-id>`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "first-name",
			Usage: "Account holder's first name",
		},
		&cli.StringFlag{
			Name:  "last-name",
			Usage: "Account holder's last name",
		},
		&cli.StringFlag{
			Name:  "date-of-birth",
			Usage: "Date of birth (YYYY-MM-DD)",
		},
		&cli.StringFlag{
			Name:  "national-id",
			Usage: "National ID (optional)",
		},
		&cli.StringFlag{
			Name:  "email",
			Usage: "Email address (generated when omitted)",
		},
		&cli.StringFlag{
			Name:  "password",
			Usage: "Password (default password when omitted)",
		},
		&cli.StringFlag{
			Name:  "resume",
			Usage: "Resume the run with this ID from its checkpoint",
		},
	},
	Action: runAction,
}

var demoCommand = &cli.Command{
	Name:   "demo",
	Usage:  "Run the signup flow with built-in demo data",
	Action: demoAction,
}

func runAction(c *cli.Context) error {
	rt, err := buildRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runID := c.String("resume"); runID != "" {
		state, err := rt.Manager.ResumeRunSync(ctx, runID)
		if err != nil {
			return err
		}
		return printRun(state)
	}

	params := core.AccountParams{
		FirstName:   c.String("first-name"),
		LastName:    c.String("last-name"),
		DateOfBirth: c.String("date-of-birth"),
		NationalID:  c.String("national-id"),
		Email:       c.String("email"),
		Password:    c.String("password"),
	}

	state, err := rt.Manager.RunSync(ctx, params)
	if err != nil {
		return err
	}
	return printRun(state)
}

func demoAction(c *cli.Context) error {
	rt, err := buildRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state, err := rt.Manager.RunSync(ctx, account.DemoParams())
	if err != nil {
		return err
	}
	return printRun(state)
}

// printRun prints the run verdict and its step-by-step history. A non-zero
// exit code signals anything short of a successful signup.
func printRun(state *core.RunState) error {
	fmt.Printf("Run:      %s\n", state.ID)
	fmt.Printf("Account:  %s\n", state.Params.Email)
	fmt.Printf("Status:   %s\n", state.Status)
	fmt.Println()

	for _, res := range state.History {
		line := fmt.Sprintf("  %-10s attempt %d  %-20s %v", res.Step, res.Attempt, res.Outcome, res.Elapsed.Round(timePrecision))
		if res.Error != "" {
			line += "  " + res.Error
		}
		fmt.Println(line)
	}

	summary := state.Summary()
	fmt.Println()
	fmt.Printf("Steps: %d ok, %d via fallback, %d failed (%d attempts total)\n",
		summary.Succeeded, summary.FallbackUsed, summary.Failed, summary.TotalAttempts)

	if state.Status != core.RunSucceeded {
		return cli.Exit(fmt.Sprintf("run ended %s", state.Status), 1)
	}
	return nil
}
