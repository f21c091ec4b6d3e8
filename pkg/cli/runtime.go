package cli

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/signup-runner/pkg/config"
	"github.com/devicelab-dev/signup-runner/pkg/driver"
	"github.com/devicelab-dev/signup-runner/pkg/driver/mock"
	"github.com/devicelab-dev/signup-runner/pkg/driver/uia2"
	"github.com/devicelab-dev/signup-runner/pkg/engine"
	"github.com/devicelab-dev/signup-runner/pkg/logger"
	"github.com/devicelab-dev/signup-runner/pkg/selector"
	"github.com/devicelab-dev/signup-runner/pkg/store"
)

// runtime bundles everything a command needs: loaded config, the result
// store, and a run manager wired to the configured driver.
type runtime struct {
	Config  *config.Config
	Store   store.Store
	Manager *engine.Manager
}

func buildRuntime(c *cli.Context) (*runtime, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(config.GetHome())
	}
	if err != nil {
		return nil, err
	}

	if c.Bool("verbose") {
		logger.InitWriter(os.Stderr)
	} else if err := logger.Init(cfg.LogPath); err != nil {
		return nil, err
	}

	catalog := selector.Default()
	if cfg.Selectors != "" {
		catalog, err = selector.Load(cfg.Selectors)
		if err != nil {
			logger.Close()
			return nil, err
		}
	}

	st, err := store.New(context.Background(), cfg.Store)
	if err != nil {
		logger.Close()
		return nil, err
	}

	var factory driver.Factory
	switch cfg.Driver.Kind {
	case "mock":
		factory = mock.NewPool().Factory()
	default:
		factory = uia2.Factory(cfg.Driver)
	}

	eng := engine.New(st, factory, catalog, cfg.RetryPolicy(), cfg.Steps)
	return &runtime{
		Config:  cfg,
		Store:   st,
		Manager: engine.NewManager(eng, st),
	}, nil
}

func (r *runtime) Close() {
	_ = r.Store.Close()
	logger.Close()
}
