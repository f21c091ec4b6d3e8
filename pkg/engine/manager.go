package engine

import (
	"context"
	"sync"

	"github.com/devicelab-dev/signup-runner/pkg/account"
	"github.com/devicelab-dev/signup-runner/pkg/core"
	"github.com/devicelab-dev/signup-runner/pkg/store"
)

// Manager tracks live runs and exposes the start/resume/cancel/query surface
// used by the CLI and the REST API. One manager per process. The cancels map
// doubles as the live-run registry: while an ID is registered, exactly one
// engine invocation owns that run, and starting or resuming it again is
// rejected.
type Manager struct {
	engine *Engine
	store  store.Store

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a manager on top of an engine and its store.
func NewManager(e *Engine, st store.Store) *Manager {
	return &Manager{
		engine:  e,
		store:   st,
		cancels: make(map[string]context.CancelFunc),
	}
}

// StartRun validates the parameters, generates missing credentials, persists
// the pending run, and launches it in the background. Returns a snapshot of
// the freshly created run.
func (m *Manager) StartRun(params core.AccountParams) (*core.RunState, error) {
	if err := account.Generate(&params); err != nil {
		return nil, err
	}

	state := core.NewRunState(params)
	if err := m.store.Upsert(context.Background(), state.Clone()); err != nil {
		return nil, err
	}

	if err := m.launch(state); err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// RunSync validates, persists, and runs to completion on the caller's
// goroutine. Used by the CLI.
func (m *Manager) RunSync(ctx context.Context, params core.AccountParams) (*core.RunState, error) {
	if err := account.Generate(&params); err != nil {
		return nil, err
	}

	state := core.NewRunState(params)
	if err := m.store.Upsert(ctx, state.Clone()); err != nil {
		return nil, err
	}

	return m.runRegistered(ctx, state)
}

// ResumeRun reloads a run from the store and continues it from its
// checkpointed step. Terminal runs are returned unchanged; a run that is
// still live on this manager is rejected with ErrRunActive.
func (m *Manager) ResumeRun(runID string) (*core.RunState, error) {
	state, err := m.store.Read(context.Background(), runID)
	if err != nil {
		return nil, err
	}
	if state.Status.IsTerminal() {
		return state, nil
	}

	if err := m.launch(state); err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// ResumeRunSync is the blocking variant of ResumeRun, for the CLI.
func (m *Manager) ResumeRunSync(ctx context.Context, runID string) (*core.RunState, error) {
	state, err := m.store.Read(ctx, runID)
	if err != nil {
		return nil, err
	}
	if state.Status.IsTerminal() {
		return state, nil
	}

	return m.runRegistered(ctx, state)
}

// CancelRun cancels a live run. The engine observes the cancellation at the
// next step boundary and abandons the run.
func (m *Manager) CancelRun(runID string) error {
	m.mu.Lock()
	cancel, ok := m.cancels[runID]
	m.mu.Unlock()
	if !ok {
		return core.ErrRunNotFound.WithMessage("run is not live").
			WithDetails(map[string]interface{}{"runId": runID})
	}
	cancel()
	return nil
}

// GetRun loads one run snapshot from the store.
func (m *Manager) GetRun(runID string) (*core.RunState, error) {
	return m.store.Read(context.Background(), runID)
}

// ListRuns loads all run snapshots from the store.
func (m *Manager) ListRuns() ([]*core.RunState, error) {
	return m.store.List(context.Background())
}

// Wait blocks until all background runs have finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// launch registers the run as live and starts it on its own goroutine.
func (m *Manager) launch(state *core.RunState) error {
	ctx, cancel := context.WithCancel(context.Background())
	if !m.register(state.ID, cancel) {
		cancel()
		return core.ErrRunActive.WithDetails(map[string]interface{}{"runId": state.ID})
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.unregister(state.ID)
		defer cancel()
		_ = m.engine.Run(ctx, state)
	}()
	return nil
}

// runRegistered executes a run on the caller's goroutine while holding its
// live-run registration, so the run stays cancellable and cannot be started
// twice.
func (m *Manager) runRegistered(ctx context.Context, state *core.RunState) (*core.RunState, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !m.register(state.ID, cancel) {
		return nil, core.ErrRunActive.WithDetails(map[string]interface{}{"runId": state.ID})
	}
	defer m.unregister(state.ID)

	err := m.engine.Run(runCtx, state)
	return state.Clone(), err
}

// register claims the run ID, reporting false when it is already live.
func (m *Manager) register(runID string, cancel context.CancelFunc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, live := m.cancels[runID]; live {
		return false
	}
	m.cancels[runID] = cancel
	return true
}

func (m *Manager) unregister(runID string) {
	m.mu.Lock()
	delete(m.cancels, runID)
	m.mu.Unlock()
}
