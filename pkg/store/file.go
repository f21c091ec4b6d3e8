package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/devicelab-dev/signup-runner/pkg/core"
)

// File persists each run as a JSON snapshot plus a JSONL step log in one
// directory. The default backend; no external service needed.
type File struct {
	dir string
	mu  sync.RWMutex
}

// NewFile creates the directory if needed and returns the backend.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		dir = "runs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, core.ErrStoreUnavailable.WithCause(err)
	}
	return &File{dir: dir}, nil
}

func (f *File) statePath(runID string) string {
	return filepath.Join(f.dir, runID+".json")
}

func (f *File) stepsPath(runID string) string {
	return filepath.Join(f.dir, runID+".steps.jsonl")
}

// Append writes one step result to the run's JSONL log.
func (f *File) Append(_ context.Context, runID string, res core.StepResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(res)
	if err != nil {
		return core.ErrStoreUnavailable.WithCause(err)
	}

	file, err := os.OpenFile(f.stepsPath(runID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return core.ErrStoreUnavailable.WithCause(err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return core.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}

// Upsert atomically replaces the run's snapshot file.
func (f *File) Upsert(_ context.Context, state *core.RunState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return core.ErrStoreUnavailable.WithCause(err)
	}

	tmp := f.statePath(state.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return core.ErrStoreUnavailable.WithCause(err)
	}
	if err := os.Rename(tmp, f.statePath(state.ID)); err != nil {
		return core.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}

// Read loads a run snapshot.
func (f *File) Read(_ context.Context, runID string) (*core.RunState, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.statePath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrRunNotFound.WithDetails(map[string]interface{}{"runId": runID})
		}
		return nil, core.ErrStoreUnavailable.WithCause(err)
	}

	var state core.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, core.ErrStoreUnavailable.WithCause(fmt.Errorf("corrupt snapshot for %s: %w", runID, err))
	}
	return &state, nil
}

// List loads all run snapshots, newest first.
func (f *File) List(_ context.Context) ([]*core.RunState, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, core.ErrStoreUnavailable.WithCause(err)
	}

	var runs []*core.RunState
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(f.dir, name))
		if err != nil {
			continue
		}
		var state core.RunState
		if err := json.Unmarshal(data, &state); err != nil {
			continue
		}
		runs = append(runs, &state)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

// Close is a no-op for the file backend.
func (f *File) Close() error {
	return nil
}
