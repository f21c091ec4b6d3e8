package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/signup-runner/pkg/api"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serve the REST API for submitting and tracking runs",
	Description: `Start the HTTP server. Runs submitted over the API execute in the
background against the configured driver and store.

Examples:
  signup-runner serve
  signup-runner serve --port 9090`,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Usage:   "Listen port (overrides the config file)",
			EnvVars: []string{"SIGNUP_RUNNER_PORT"},
		},
	},
	Action: serveAction,
}

func serveAction(c *cli.Context) error {
	rt, err := buildRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	port := rt.Config.Server.Port
	if c.IsSet("port") {
		port = c.Int("port")
	}

	return api.New(rt.Manager).Start(port)
}
