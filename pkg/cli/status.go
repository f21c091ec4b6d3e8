package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"
)

var statusCommand = &cli.Command{
	Name:      "status",
	Usage:     "Show one run's state and step history",
	ArgsUsage: "<run-id>",
	Action:    statusAction,
}

var listCommand = &cli.Command{
	Name:   "list",
	Usage:  "List all recorded runs, newest first",
	Action: listAction,
}

var cancelCommand = &cli.Command{
	Name:      "cancel",
	Usage:     "Cancel a run that is live on the API server",
	ArgsUsage: "<run-id>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Usage:   "API server base URL",
			Value:   "http://127.0.0.1:8080",
			EnvVars: []string{"SIGNUP_RUNNER_SERVER"},
		},
	},
	Action: cancelAction,
}

func statusAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: signup-runner status <run-id>", 2)
	}

	rt, err := buildRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	state, err := rt.Manager.GetRun(c.Args().First())
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func listAction(c *cli.Context) error {
	rt, err := buildRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	runs, err := rt.Manager.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Printf("%-36s  %-10s  %-28s  %s\n", "RUN", "STATUS", "ACCOUNT", "UPDATED")
	for _, run := range runs {
		fmt.Printf("%-36s  %-10s  %-28s  %s\n",
			run.ID, run.Status, run.Params.Email, run.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

func cancelAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: signup-runner cancel <run-id>", 2)
	}

	url := fmt.Sprintf("%s/runs/%s/cancel", c.String("server"), c.Args().First())
	resp, err := http.Post(url, "application/json", nil) //#nosec G107 -- user-provided server URL
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		fmt.Println("Cancellation requested.")
		return nil
	case http.StatusNotFound:
		return cli.Exit("run is not live on the server", 1)
	default:
		return cli.Exit(fmt.Sprintf("server answered %s", resp.Status), 1)
	}
}
