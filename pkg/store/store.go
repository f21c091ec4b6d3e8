// Package store persists run state and step logs. The engine consumes it
// only through the append/upsert interface; backends must support concurrent
// writes for independent runs.
package store

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/signup-runner/pkg/config"
	"github.com/devicelab-dev/signup-runner/pkg/core"
)

// Store is the result sink. Append records one step result for a run;
// Upsert snapshots the whole run state. All writes are keyed by run ID so
// concurrent runs never interfere.
type Store interface {
	Append(ctx context.Context, runID string, res core.StepResult) error
	Upsert(ctx context.Context, state *core.RunState) error
	Read(ctx context.Context, runID string) (*core.RunState, error)
	List(ctx context.Context) ([]*core.RunState, error)
	Close() error
}

// New builds the backend selected by the store configuration.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "file":
		return NewFile(cfg.FileDir)
	case "postgres":
		return NewPostgres(ctx, cfg.PostgresDSN)
	case "redis":
		return NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	default:
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown store backend %q", cfg.Backend))
	}
}
