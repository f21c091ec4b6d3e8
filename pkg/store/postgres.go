package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devicelab-dev/signup-runner/pkg/core"
)

// Postgres keeps run snapshots in a runs table and the step log in
// run_steps, both as JSONB.
type Postgres struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	state      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS run_steps (
	id       BIGSERIAL PRIMARY KEY,
	run_id   TEXT NOT NULL,
	step     TEXT NOT NULL,
	result   JSONB NOT NULL,
	ended_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS run_steps_run_id_idx ON run_steps (run_id);
`

// NewPostgres connects and ensures the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, core.ErrStoreUnavailable.WithCause(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, core.ErrStoreUnavailable.WithCause(err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, core.ErrStoreUnavailable.WithCause(err)
	}
	return &Postgres{pool: pool}, nil
}

// Append inserts one step result.
func (p *Postgres) Append(ctx context.Context, runID string, res core.StepResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return core.ErrStoreUnavailable.WithCause(err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO run_steps (run_id, step, result, ended_at) VALUES ($1, $2, $3, $4)`,
		runID, res.Step, data, res.EndedAt)
	if err != nil {
		return core.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}

// Upsert replaces the run snapshot.
func (p *Postgres) Upsert(ctx context.Context, state *core.RunState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return core.ErrStoreUnavailable.WithCause(err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO runs (id, status, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at`,
		state.ID, state.Status.String(), data, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		return core.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}

// Read loads one run snapshot.
func (p *Postgres) Read(ctx context.Context, runID string) (*core.RunState, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT state FROM runs WHERE id = $1`, runID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
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

// List loads all run snapshots, newest first.
func (p *Postgres) List(ctx context.Context) ([]*core.RunState, error) {
	rows, err := p.pool.Query(ctx, `SELECT state FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, core.ErrStoreUnavailable.WithCause(err)
	}
	defer rows.Close()

	var runs []*core.RunState
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, core.ErrStoreUnavailable.WithCause(err)
		}
		var state core.RunState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, core.ErrStoreUnavailable.WithCause(err)
		}
		runs = append(runs, &state)
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrStoreUnavailable.WithCause(err)
	}
	return runs, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
