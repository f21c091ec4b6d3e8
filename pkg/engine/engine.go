// Package engine sequences the signup steps for one run: retry and
// checkpoint policy, session custody, and the terminal outcome. The engine
// exclusively owns the RunState while the run is live.
package engine

import (
	"context"
	"time"

	"github.com/devicelab-dev/signup-runner/pkg/config"
	"github.com/devicelab-dev/signup-runner/pkg/core"
	"github.com/devicelab-dev/signup-runner/pkg/driver"
	"github.com/devicelab-dev/signup-runner/pkg/logger"
	"github.com/devicelab-dev/signup-runner/pkg/primitive"
	"github.com/devicelab-dev/signup-runner/pkg/selector"
	"github.com/devicelab-dev/signup-runner/pkg/steps"
	"github.com/devicelab-dev/signup-runner/pkg/store"
)

// Engine drives runs through the fixed step sequence.
type Engine struct {
	store   store.Store
	acquire driver.Factory
	catalog *selector.Catalog
	policy  core.RetryPolicy
	cfg     config.StepConfig
	steps   []steps.Step
}

// New creates an engine. The factory is invoked once per run, plus once more
// when recovering a lost session.
func New(st store.Store, factory driver.Factory, catalog *selector.Catalog, policy core.RetryPolicy, cfg config.StepConfig) *Engine {
	return &Engine{
		store:   st,
		acquire: factory,
		catalog: catalog,
		policy:  policy,
		cfg:     cfg,
		steps:   steps.Sequence(),
	}
}

// Run executes or resumes a run until a terminal status. The session is
// released on every exit path. Terminal runs are a no-op.
func (e *Engine) Run(ctx context.Context, state *core.RunState) error {
	log := logger.ForRun(state.ID)

	if state.Status.IsTerminal() {
		log.Info("run already terminal (%s), nothing to do", state.Status)
		return nil
	}

	resuming := state.Status == core.RunRunning && state.StepIndex > 0
	if resuming {
		log.Info("resuming from step %d (%s)", state.StepIndex, e.steps[state.StepIndex].Name)
	}

	session, err := e.acquire(ctx)
	if err != nil {
		log.Error("session acquisition failed: %v", err)
		e.finish(ctx, state, core.RunAbandoned, log)
		return err
	}

	released := false
	release := func() {
		if released || session == nil {
			return
		}
		released = true
		if err := session.Release(); err != nil {
			log.Warn("session release failed: %v", err)
		}
	}
	defer release()

	state.SetStatus(core.RunRunning)
	e.checkpoint(ctx, state, log)

	for i := state.StepIndex; i < len(e.steps); i++ {
		// Cancellation is honored at step boundaries only.
		select {
		case <-ctx.Done():
			log.Info("run cancelled before step %d", i)
			release()
			e.finish(ctx, state, core.RunAbandoned, log)
			return ctx.Err()
		default:
		}

		step := e.steps[i]
		outcome, result := e.runStep(session, state, step, 1, log)

		// SessionLost is the one condition the engine itself retries:
		// one re-acquisition, then the same step again.
		if outcome == core.OutcomeRetrying {
			e.record(ctx, state, result, log)
			release()

			log.Warn("session lost during %s, re-acquiring", step.Name)
			session, err = e.acquire(ctx)
			if err != nil {
				log.Error("session re-acquisition failed: %v", err)
				e.finish(ctx, state, core.RunAbandoned, log)
				return err
			}
			released = false

			outcome, result = e.runStep(session, state, step, 2, log)
			if outcome == core.OutcomeRetrying {
				log.Error("session lost again during %s, abandoning", step.Name)
				e.record(ctx, state, result, log)
				release()
				e.finish(ctx, state, core.RunAbandoned, log)
				return core.ErrSessionLost
			}
		}

		e.record(ctx, state, result, log)

		if !outcome.IsSuccess() {
			log.Error("step %s failed (%s): %s", step.Name, outcome, result.Error)
			release()
			e.finish(ctx, state, core.RunFailed, log)
			return nil
		}

		state.StepIndex = i + 1
		e.checkpoint(ctx, state, log)
		log.Info("step %s done (%s) in %v", step.Name, outcome, result.Elapsed)
	}

	release()
	e.finish(ctx, state, core.RunSucceeded, log)
	log.Info("run succeeded: %d steps, summary %+v", len(state.History), state.Summary())
	return nil
}

// runStep executes one step attempt within its budget and maps session loss
// to the retrying outcome.
func (e *Engine) runStep(session driver.Session, state *core.RunState, step steps.Step, attempt int, log *logger.RunLogger) (core.StepOutcome, core.StepResult) {
	deadline := time.Now().Add(e.cfg.Budget.Std())
	actions := primitive.New(session, e.catalog, e.policy, e.cfg, log).WithDeadline(deadline)
	c := &steps.Context{
		Run:      state,
		Actions:  actions,
		Cfg:      e.cfg,
		Log:      log,
		Deadline: deadline,
	}

	start := time.Now()
	outcome, detail, err := step.Run(c)
	elapsed := time.Since(start)

	if err != nil && core.IsSessionLost(err) {
		outcome = core.OutcomeRetrying
	}

	result := core.NewStepResult(step.Name, attempt, outcome, elapsed).
		WithDetail(detail).
		WithError(err)
	return outcome, result
}

// record appends a step result to the run history and the store log, then
// checkpoints the run snapshot.
func (e *Engine) record(ctx context.Context, state *core.RunState, result core.StepResult, log *logger.RunLogger) {
	state.Append(result)
	if err := e.store.Append(ctx, state.ID, result); err != nil {
		log.Warn("step log write failed: %v", err)
	}
	e.checkpoint(ctx, state, log)
}

// checkpoint persists the run snapshot. Persistence failures are logged and
// tolerated; the run itself continues.
func (e *Engine) checkpoint(ctx context.Context, state *core.RunState, log *logger.RunLogger) {
	if err := e.store.Upsert(ctx, state.Clone()); err != nil {
		log.Warn("checkpoint write failed: %v", err)
	}
}

// finish moves the run to a terminal status and persists it.
func (e *Engine) finish(ctx context.Context, state *core.RunState, status core.RunStatus, log *logger.RunLogger) {
	state.SetStatus(status)
	e.checkpoint(ctx, state, log)
}
