package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devicelab-dev/signup-runner/pkg/config"
	"github.com/devicelab-dev/signup-runner/pkg/core"
	"github.com/devicelab-dev/signup-runner/pkg/driver"
	"github.com/devicelab-dev/signup-runner/pkg/driver/mock"
	"github.com/devicelab-dev/signup-runner/pkg/selector"
	"github.com/devicelab-dev/signup-runner/pkg/store"
)

const captchaQuery = `new UiSelector().className("android.widget.Button").textContains("Press").clickable(true).enabled(true)`

func fastPolicy() core.RetryPolicy {
	return core.RetryPolicy{
		MaxAttempts:        3,
		BaseDelay:          time.Millisecond,
		MaxDelay:           2 * time.Millisecond,
		CoordinateFallback: true,
		LowLevelFallback:   true,
	}
}

func fastStepConfig() config.StepConfig {
	return config.StepConfig{
		Budget:             config.Duration(time.Second),
		ElementWait:        config.Duration(20 * time.Millisecond),
		PollInterval:       config.Duration(time.Millisecond),
		CaptchaHold:        config.Duration(10 * time.Millisecond),
		CaptchaConfirm:     config.Duration(10 * time.Millisecond),
		AuthWaitWindow:     config.Duration(20 * time.Millisecond),
		AuthWaitInterval:   config.Duration(time.Millisecond),
		PostAuthFastBudget: config.Duration(20 * time.Millisecond),
		PostAuthMaxNav:     2,
	}
}

func newTestEngine(t *testing.T, pool *mock.Pool) (*Engine, store.Store) {
	t.Helper()
	st, err := store.NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(st, pool.Factory(), selector.Default(), fastPolicy(), fastStepConfig()), st
}

func newRun() *core.RunState {
	return core.NewRunState(core.AccountParams{
		FirstName:   "John",
		LastName:    "Smith",
		DateOfBirth: "1995-05-15",
		Email:       "john123smith456@outlook.com",
		Password:    "wrfyh@6498$",
	})
}

// happySession presents every screen of a clean signup at once: each step
// finds what it needs and the run walks straight through.
func happySession() *mock.Session {
	s := mock.NewSession()
	s.Show("//*[contains(@text, 'CREATE NEW ACCOUNT')]")
	s.Show("//*[contains(@hint, 'email')]", driver.Element{Ref: "email", Displayed: true})
	s.Show("//*[contains(@hint, 'Password')]", driver.Element{Ref: "password", Displayed: true})
	s.Show("//*[contains(@text, 'Day')]")
	s.Show("//*[@text='15']")
	s.Show("//*[contains(@text, 'Month')]")
	s.Show("//*[@text='May']")
	s.Show("android.widget.EditText", driver.Element{Ref: "edit0", Displayed: true})
	s.Show(`new UiSelector().className("android.widget.EditText").instance(1)`,
		driver.Element{Ref: "edit1", Displayed: true})
	s.Show(`new UiSelector().textContains("Next").clickable(true).enabled(true)`)
	s.Show(captchaQuery)
	s.LongPressHook = func(string, time.Duration) error {
		s.Hide(captchaQuery)
		return nil
	}
	s.Show("//*[@text='Search']")
	return s
}

func TestRunHappyPath(t *testing.T) {
	pool := mock.NewPool()
	pool.New = happySession
	eng, st := newTestEngine(t, pool)

	state := newRun()
	if err := eng.Run(context.Background(), state); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if state.Status != core.RunSucceeded {
		t.Errorf("status %s, want succeeded", state.Status)
	}
	if len(state.History) != 9 {
		t.Fatalf("expected 9 step results, got %d", len(state.History))
	}
	for _, res := range state.History {
		if !res.Outcome.IsSuccess() {
			t.Errorf("step %s ended %s", res.Step, res.Outcome)
		}
		if res.Attempt != 1 {
			t.Errorf("step %s took %d attempts", res.Step, res.Attempt)
		}
	}
	if state.StepIndex != 9 {
		t.Errorf("stepIndex %d, want 9", state.StepIndex)
	}
	if pool.Acquired() != 1 || pool.Released() != 1 {
		t.Errorf("session leak: acquired %d, released %d", pool.Acquired(), pool.Released())
	}

	stored, err := st.Read(context.Background(), state.ID)
	if err != nil {
		t.Fatalf("read checkpoint: %v", err)
	}
	if stored.Status != core.RunSucceeded || len(stored.History) != 9 {
		t.Errorf("checkpoint out of date: %s with %d results", stored.Status, len(stored.History))
	}
}

func TestRunAuthHangFails(t *testing.T) {
	pool := mock.NewPool()
	pool.New = func() *mock.Session {
		s := happySession()
		s.Show("android.widget.ProgressBar", driver.Element{Ref: "spinner", Displayed: true})
		return s
	}
	eng, _ := newTestEngine(t, pool)

	state := newRun()
	if err := eng.Run(context.Background(), state); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if state.Status != core.RunFailed {
		t.Errorf("status %s, want failed", state.Status)
	}
	last := state.History[len(state.History)-1]
	if last.Step != "auth-wait" || last.Outcome != core.OutcomeFatal {
		t.Errorf("failing step %s/%s, want auth-wait/%s", last.Step, last.Outcome, core.OutcomeFatal)
	}
	if state.StepIndex != 6 {
		t.Errorf("stepIndex advanced past the failed step: %d", state.StepIndex)
	}
	if pool.Released() != pool.Acquired() {
		t.Errorf("session leak: acquired %d, released %d", pool.Acquired(), pool.Released())
	}
}

func TestRunCaptchaFallbackStillSucceeds(t *testing.T) {
	pool := mock.NewPool()
	pool.New = func() *mock.Session {
		s := happySession()
		// Native gesture completes but the screen never moves; only the
		// low-level channel is acknowledged.
		s.LongPressHook = func(string, time.Duration) error { return nil }
		s.LowLevelHook = func(...string) error {
			s.Hide(captchaQuery)
			return nil
		}
		return s
	}
	eng, _ := newTestEngine(t, pool)

	state := newRun()
	if err := eng.Run(context.Background(), state); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if state.Status != core.RunSucceeded {
		t.Errorf("status %s, want succeeded", state.Status)
	}
	summary := state.Summary()
	if summary.FallbackUsed != 1 {
		t.Errorf("expected one fallback-used step, got %d", summary.FallbackUsed)
	}
	for _, res := range state.History {
		if res.Step == "captcha" && res.Outcome != core.OutcomeFallbackUsed {
			t.Errorf("captcha ended %s, want %s", res.Outcome, core.OutcomeFallbackUsed)
		}
	}
}

func TestRunResumeSkipsCompletedSteps(t *testing.T) {
	pool := mock.NewPool()
	pool.New = happySession
	eng, _ := newTestEngine(t, pool)

	state := newRun()
	state.SetStatus(core.RunRunning)
	state.StepIndex = 7 // checkpointed after captcha and auth-wait
	done := []string{"welcome", "email", "password", "details", "name", "captcha", "auth-wait"}
	for _, step := range done {
		state.Append(core.NewStepResult(step, 1, core.OutcomeSuccess, time.Millisecond))
	}

	if err := eng.Run(context.Background(), state); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	if state.Status != core.RunSucceeded {
		t.Errorf("status %s, want succeeded", state.Status)
	}
	if len(state.History) != 9 {
		t.Fatalf("expected 9 step results, got %d", len(state.History))
	}
	for i, step := range done {
		if state.History[i].Step != step {
			t.Errorf("earlier history rewritten at %d: %s", i, state.History[i].Step)
		}
	}
	if state.History[7].Step != "post-auth" || state.History[8].Step != "verify" {
		t.Errorf("resumed steps wrong: %s, %s", state.History[7].Step, state.History[8].Step)
	}

	// Completed screens are never touched again.
	for _, c := range pool.Sessions()[0].CallsOf("find") {
		if c.Text == "//*[contains(@text, 'CREATE NEW ACCOUNT')]" {
			t.Error("resume re-ran the welcome step")
		}
	}
}

func TestRunTerminalIsNoOp(t *testing.T) {
	pool := mock.NewPool()
	eng, _ := newTestEngine(t, pool)

	state := newRun()
	state.SetStatus(core.RunSucceeded)

	if err := eng.Run(context.Background(), state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.Acquired() != 0 {
		t.Errorf("terminal run acquired a session")
	}
}

func TestRunSessionLostRecoversOnce(t *testing.T) {
	pool := mock.NewPool()
	handed := 0
	pool.New = func() *mock.Session {
		handed++
		if handed == 1 {
			s := mock.NewSession()
			s.FindHook = func(string, string) ([]driver.Element, error) {
				return nil, core.ErrSessionLost
			}
			return s
		}
		return happySession()
	}
	eng, _ := newTestEngine(t, pool)

	state := newRun()
	if err := eng.Run(context.Background(), state); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if state.Status != core.RunSucceeded {
		t.Errorf("status %s, want succeeded", state.Status)
	}
	if len(state.History) != 10 {
		t.Fatalf("expected retrying entry plus 9 results, got %d", len(state.History))
	}
	if state.History[0].Outcome != core.OutcomeRetrying || state.History[0].Step != "welcome" {
		t.Errorf("first entry %s/%s, want welcome/%s",
			state.History[0].Step, state.History[0].Outcome, core.OutcomeRetrying)
	}
	if state.History[1].Step != "welcome" || state.History[1].Attempt != 2 {
		t.Errorf("retried entry %s attempt %d, want welcome attempt 2",
			state.History[1].Step, state.History[1].Attempt)
	}
	if pool.Acquired() != 2 || pool.Released() != 2 {
		t.Errorf("session leak: acquired %d, released %d", pool.Acquired(), pool.Released())
	}
}

func TestRunSecondSessionLossAbandons(t *testing.T) {
	pool := mock.NewPool()
	pool.New = func() *mock.Session {
		s := mock.NewSession()
		s.FindHook = func(string, string) ([]driver.Element, error) {
			return nil, core.ErrSessionLost
		}
		return s
	}
	eng, _ := newTestEngine(t, pool)

	state := newRun()
	err := eng.Run(context.Background(), state)
	if !errors.Is(err, core.ErrSessionLost) {
		t.Fatalf("expected session-lost error, got %v", err)
	}

	if state.Status != core.RunAbandoned {
		t.Errorf("status %s, want abandoned", state.Status)
	}
	if pool.Acquired() != 2 || pool.Released() != 2 {
		t.Errorf("session leak: acquired %d, released %d", pool.Acquired(), pool.Released())
	}
}

func TestRunAcquireFailureAbandons(t *testing.T) {
	pool := mock.NewPool()
	pool.AcquireErr = core.ErrSessionUnavailable
	eng, _ := newTestEngine(t, pool)

	state := newRun()
	err := eng.Run(context.Background(), state)
	if !errors.Is(err, core.ErrSessionUnavailable) {
		t.Fatalf("expected session-unavailable, got %v", err)
	}
	if state.Status != core.RunAbandoned {
		t.Errorf("status %s, want abandoned", state.Status)
	}
}

func TestRunCancelledAtBoundary(t *testing.T) {
	pool := mock.NewPool()
	pool.New = happySession
	eng, _ := newTestEngine(t, pool)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := newRun()
	err := eng.Run(ctx, state)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if state.Status != core.RunAbandoned {
		t.Errorf("status %s, want abandoned", state.Status)
	}
	if pool.Acquired() != 1 || pool.Released() != 1 {
		t.Errorf("session leak: acquired %d, released %d", pool.Acquired(), pool.Released())
	}
}

// TestRunFaultInjectionNeverLeaksSessions drives many runs against sessions
// that randomly drop mid-step and checks that every borrowed session comes
// back regardless of how the run ends.
func TestRunFaultInjectionNeverLeaksSessions(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	pool := mock.NewPool()
	pool.New = func() *mock.Session {
		s := happySession()
		s.TapHook = func(string) error {
			if rng.Intn(8) == 0 {
				return core.ErrSessionLost
			}
			return nil
		}
		return s
	}
	eng, st := newTestEngine(t, pool)

	for i := 0; i < 100; i++ {
		state := newRun()
		_ = eng.Run(context.Background(), state)
		if !state.Status.IsTerminal() {
			t.Fatalf("run %d ended non-terminal: %s", i, state.Status)
		}
	}

	if pool.Released() != pool.Acquired() {
		t.Fatalf("session leak: acquired %d, released %d", pool.Acquired(), pool.Released())
	}

	runs, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 100 {
		t.Errorf("expected 100 stored runs, got %d", len(runs))
	}
	for _, run := range runs {
		if !run.Status.IsTerminal() {
			t.Errorf("stored run %s non-terminal: %s", run.ID, run.Status)
		}
	}
}

func TestManagerStartAndGet(t *testing.T) {
	pool := mock.NewPool()
	pool.New = happySession
	eng, st := newTestEngine(t, pool)
	m := NewManager(eng, st)

	state, err := m.StartRun(core.AccountParams{
		FirstName:   "John",
		LastName:    "Smith",
		DateOfBirth: "1995-05-15",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if state.Params.Email == "" || state.Params.Password == "" {
		t.Errorf("credentials not generated: %+v", state.Params)
	}

	m.Wait()

	got, err := m.GetRun(state.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != core.RunSucceeded {
		t.Errorf("status %s, want succeeded", got.Status)
	}
}

func TestManagerRejectsBadParams(t *testing.T) {
	pool := mock.NewPool()
	eng, st := newTestEngine(t, pool)
	m := NewManager(eng, st)

	_, err := m.StartRun(core.AccountParams{FirstName: "John"})
	if !errors.Is(err, core.ErrInvalidParams) {
		t.Fatalf("expected invalid-params, got %v", err)
	}
	if pool.Acquired() != 0 {
		t.Error("invalid run acquired a session")
	}
}

func TestManagerCancelLiveRun(t *testing.T) {
	st, err := store.NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	// Acquisition blocks until the run is cancelled.
	factory := func(ctx context.Context) (driver.Session, error) {
		<-ctx.Done()
		return nil, core.ErrSessionUnavailable.WithCause(ctx.Err())
	}
	eng := New(st, factory, selector.Default(), fastPolicy(), fastStepConfig())
	m := NewManager(eng, st)

	state, err := m.StartRun(core.AccountParams{
		FirstName:   "John",
		LastName:    "Smith",
		DateOfBirth: "1995-05-15",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.CancelRun(state.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	m.Wait()

	got, err := m.GetRun(state.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != core.RunAbandoned {
		t.Errorf("status %s, want abandoned", got.Status)
	}
}

func TestManagerCancelUnknownRun(t *testing.T) {
	pool := mock.NewPool()
	eng, st := newTestEngine(t, pool)
	m := NewManager(eng, st)

	if err := m.CancelRun("no-such-run"); !errors.Is(err, core.ErrRunNotFound) {
		t.Fatalf("expected run-not-found, got %v", err)
	}
}

func TestManagerResumeTerminalRunIsNoOp(t *testing.T) {
	pool := mock.NewPool()
	eng, st := newTestEngine(t, pool)
	m := NewManager(eng, st)

	state := newRun()
	state.SetStatus(core.RunFailed)
	if err := st.Upsert(context.Background(), state); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	got, err := m.ResumeRun(state.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got.Status != core.RunFailed {
		t.Errorf("status %s, want failed", got.Status)
	}
	m.Wait()
	if pool.Acquired() != 0 {
		t.Error("terminal resume acquired a session")
	}
}

// TestManagerResumeLiveRunRejected holds a run inside session acquisition and
// checks that resuming it again is refused instead of starting a second engine
// invocation on the same run.
func TestManagerResumeLiveRunRejected(t *testing.T) {
	st, err := store.NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	gate := make(chan struct{})
	var acquires int32
	factory := func(ctx context.Context) (driver.Session, error) {
		atomic.AddInt32(&acquires, 1)
		<-gate
		return nil, core.ErrSessionUnavailable
	}
	eng := New(st, factory, selector.Default(), fastPolicy(), fastStepConfig())
	m := NewManager(eng, st)

	state, err := m.StartRun(core.AccountParams{
		FirstName:   "John",
		LastName:    "Smith",
		DateOfBirth: "1995-05-15",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := m.ResumeRun(state.ID); !errors.Is(err, core.ErrRunActive) {
		t.Fatalf("expected run-active from resume, got %v", err)
	}
	if _, err := m.ResumeRunSync(context.Background(), state.ID); !errors.Is(err, core.ErrRunActive) {
		t.Fatalf("expected run-active from sync resume, got %v", err)
	}

	close(gate)
	m.Wait()

	if n := atomic.LoadInt32(&acquires); n != 1 {
		t.Errorf("sessions acquired for one live run: %d, want 1", n)
	}
}

func TestManagerResumeContinuesRun(t *testing.T) {
	pool := mock.NewPool()
	pool.New = happySession
	eng, st := newTestEngine(t, pool)
	m := NewManager(eng, st)

	state := newRun()
	state.SetStatus(core.RunRunning)
	state.StepIndex = 8 // only verify remains
	for _, step := range []string{"welcome", "email", "password", "details", "name", "captcha", "auth-wait", "post-auth"} {
		state.Append(core.NewStepResult(step, 1, core.OutcomeSuccess, time.Millisecond))
	}
	if err := st.Upsert(context.Background(), state); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	if _, err := m.ResumeRun(state.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	m.Wait()

	got, err := m.GetRun(state.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != core.RunSucceeded {
		t.Errorf("status %s, want succeeded", got.Status)
	}
	if len(got.History) != 9 || got.History[8].Step != "verify" {
		t.Errorf("unexpected history: %d entries", len(got.History))
	}
}
