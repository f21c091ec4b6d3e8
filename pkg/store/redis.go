package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/devicelab-dev/signup-runner/pkg/core"
)

// Redis keeps each run snapshot under run:<id>, the step log in a
// run:<id>:steps list, and the run index in a set.
type Redis struct {
	client *redis.Client
}

const redisRunIndex = "runs"

// NewRedis connects and verifies the server answers.
func NewRedis(ctx context.Context, addr string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, core.ErrStoreUnavailable.WithCause(err)
	}
	return &Redis{client: client}, nil
}

func runKey(runID string) string {
	return "run:" + runID
}

func stepsKey(runID string) string {
	return "run:" + runID + ":steps"
}

// Append pushes one step result onto the run's log list.
func (r *Redis) Append(ctx context.Context, runID string, res core.StepResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return core.ErrStoreUnavailable.WithCause(err)
	}
	if err := r.client.RPush(ctx, stepsKey(runID), data).Err(); err != nil {
		return core.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}

// Upsert replaces the run snapshot and indexes the run ID.
func (r *Redis) Upsert(ctx context.Context, state *core.RunState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return core.ErrStoreUnavailable.WithCause(err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, runKey(state.ID), data, 0)
	pipe.SAdd(ctx, redisRunIndex, state.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return core.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}

// Read loads one run snapshot.
func (r *Redis) Read(ctx context.Context, runID string) (*core.RunState, error) {
	data, err := r.client.Get(ctx, runKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrRunNotFound.WithDetails(map[string]interface{}{"runId": runID})
	}
	if err != nil {
		return nil, core.ErrStoreUnavailable.WithCause(err)
	}

	var state core.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, core.ErrStoreUnavailable.WithCause(err)
	}
	return &state, nil
}

// List loads all indexed run snapshots.
func (r *Redis) List(ctx context.Context) ([]*core.RunState, error) {
	ids, err := r.client.SMembers(ctx, redisRunIndex).Result()
	if err != nil {
		return nil, core.ErrStoreUnavailable.WithCause(err)
	}

	var runs []*core.RunState
	for _, id := range ids {
		state, err := r.Read(ctx, id)
		if err != nil {
			if errors.Is(err, core.ErrRunNotFound) {
				continue
			}
			return nil, err
		}
		runs = append(runs, state)
	}
	return runs, nil
}

// Close closes the client connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
