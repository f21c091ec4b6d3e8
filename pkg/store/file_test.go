package store

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/devicelab-dev/signup-runner/pkg/core"
)

func newTestFileStore(t *testing.T) *File {
	t.Helper()
	f, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return f
}

func sampleRun() *core.RunState {
	return core.NewRunState(core.AccountParams{
		FirstName:   "John",
		LastName:    "Smith",
		DateOfBirth: "1995-05-15",
		Email:       "john123smith456@outlook.com",
		Password:    "wrfyh@6498$",
	})
}

func TestFileUpsertAndRead(t *testing.T) {
	f := newTestFileStore(t)
	ctx := context.Background()

	run := sampleRun()
	run.SetStatus(core.RunRunning)
	run.StepIndex = 3

	if err := f.Upsert(ctx, run); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := f.Read(ctx, run.ID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.ID != run.ID || got.StepIndex != 3 || got.Status != core.RunRunning {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Params.Email != run.Params.Email {
		t.Errorf("params lost: %+v", got.Params)
	}
}

func TestFileReadMissingRun(t *testing.T) {
	f := newTestFileStore(t)

	_, err := f.Read(context.Background(), "no-such-run")
	if !errors.Is(err, core.ErrRunNotFound) {
		t.Fatalf("expected RunNotFound, got %v", err)
	}
}

func TestFileAppendIsJSONL(t *testing.T) {
	f := newTestFileStore(t)
	ctx := context.Background()

	run := sampleRun()
	for i, step := range []string{"welcome", "email", "password"} {
		res := core.NewStepResult(step, 1, core.OutcomeSuccess, time.Duration(i)*time.Second)
		if err := f.Append(ctx, run.ID, res); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	file, err := os.Open(filepath.Join(f.dir, run.ID+".steps.jsonl"))
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer file.Close()

	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines++
	}
	if lines != 3 {
		t.Errorf("expected 3 log lines, got %d", lines)
	}
}

func TestFileList(t *testing.T) {
	f := newTestFileStore(t)
	ctx := context.Background()

	a := sampleRun()
	b := sampleRun()
	b.CreatedAt = a.CreatedAt.Add(time.Minute)

	if err := f.Upsert(ctx, a); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := f.Upsert(ctx, b); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Step logs live next to the snapshots and must not show up as runs.
	res := core.NewStepResult("welcome", 1, core.OutcomeSuccess, time.Millisecond)
	for _, run := range []*core.RunState{a, b} {
		if err := f.Append(ctx, run.ID, res); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	runs, err := f.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != b.ID {
		t.Errorf("expected newest first, got %s", runs[0].ID)
	}
}

func TestFileConcurrentRunsDoNotInterfere(t *testing.T) {
	f := newTestFileStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	runs := make([]*core.RunState, 8)
	for i := range runs {
		runs[i] = sampleRun()
	}

	for _, run := range runs {
		wg.Add(1)
		go func(r *core.RunState) {
			defer wg.Done()
			for step := 0; step < 5; step++ {
				r.StepIndex = step
				if err := f.Upsert(ctx, r); err != nil {
					t.Errorf("upsert: %v", err)
					return
				}
				res := core.NewStepResult("step", 1, core.OutcomeSuccess, time.Millisecond)
				if err := f.Append(ctx, r.ID, res); err != nil {
					t.Errorf("append: %v", err)
					return
				}
			}
		}(run)
	}
	wg.Wait()

	for _, run := range runs {
		got, err := f.Read(ctx, run.ID)
		if err != nil {
			t.Fatalf("read %s: %v", run.ID, err)
		}
		if got.StepIndex != 4 {
			t.Errorf("run %s lost updates: stepIndex=%d", run.ID, got.StepIndex)
		}
	}
}
