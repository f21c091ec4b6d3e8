package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/devicelab-dev/signup-runner/pkg/api"
	"github.com/devicelab-dev/signup-runner/pkg/config"
	"github.com/devicelab-dev/signup-runner/pkg/core"
	"github.com/devicelab-dev/signup-runner/pkg/driver"
	"github.com/devicelab-dev/signup-runner/pkg/driver/mock"
	"github.com/devicelab-dev/signup-runner/pkg/engine"
	"github.com/devicelab-dev/signup-runner/pkg/selector"
	"github.com/devicelab-dev/signup-runner/pkg/store"
)

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

// happySession presents every screen of a clean signup at once.
func happySession() *mock.Session {
	captchaQuery := `new UiSelector().className("android.widget.Button").textContains("Press").clickable(true).enabled(true)`

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

func setupTestAPI(t *testing.T) (*fiber.App, *engine.Manager, store.Store) {
	t.Helper()

	st, err := store.NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	pool := mock.NewPool()
	pool.New = happySession

	policy := core.RetryPolicy{
		MaxAttempts:        3,
		BaseDelay:          time.Millisecond,
		MaxDelay:           2 * time.Millisecond,
		CoordinateFallback: true,
		LowLevelFallback:   true,
	}
	eng := engine.New(st, pool.Factory(), selector.Default(), policy, fastStepConfig())
	manager := engine.NewManager(eng, st)

	return api.New(manager).App(), manager, st
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp
}

func decodeRun(t *testing.T, resp *http.Response) *core.RunState {
	t.Helper()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var state core.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatalf("decode run: %v (%s)", err, data)
	}
	return &state
}

func TestStartRunAccepted(t *testing.T) {
	app, manager, _ := setupTestAPI(t)

	resp := postJSON(t, app, "/runs", api.StartRunRequest{
		FirstName:   "John",
		LastName:    "Smith",
		DateOfBirth: "1995-05-15",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status %d, want 202", resp.StatusCode)
	}

	state := decodeRun(t, resp)
	if state.ID == "" {
		t.Error("no run ID in response")
	}
	if state.Params.Email == "" || state.Params.Password == "" {
		t.Errorf("credentials not generated: %+v", state.Params)
	}

	manager.Wait()

	got, err := manager.GetRun(state.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != core.RunSucceeded {
		t.Errorf("run ended %s, want succeeded", got.Status)
	}
}

func TestStartRunValidation(t *testing.T) {
	app, _, _ := setupTestAPI(t)

	tests := []struct {
		name    string
		payload api.StartRunRequest
	}{
		{"missing last name", api.StartRunRequest{FirstName: "John", DateOfBirth: "1995-05-15"}},
		{"bad date format", api.StartRunRequest{FirstName: "John", LastName: "Smith", DateOfBirth: "15/05/1995"}},
		{"bad email", api.StartRunRequest{FirstName: "John", LastName: "Smith", DateOfBirth: "1995-05-15", Email: "not-an-email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, app, "/runs", tt.payload)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestStartRunMalformedBody(t *testing.T) {
	app, _, _ := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/runs", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status %d, want 400", resp.StatusCode)
	}
}

func TestGetRunNotFound(t *testing.T) {
	app, _, _ := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/runs/no-such-run", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status %d, want 404", resp.StatusCode)
	}
}

func TestListRuns(t *testing.T) {
	app, _, st := setupTestAPI(t)

	for i := 0; i < 2; i++ {
		state := core.NewRunState(core.AccountParams{
			FirstName:   "John",
			LastName:    "Smith",
			DateOfBirth: "1995-05-15",
		})
		state.SetStatus(core.RunFailed)
		if err := st.Upsert(context.Background(), state); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}

	var body struct {
		Runs  []core.RunState `json:"runs"`
		Total int             `json:"total"`
	}
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 2 || len(body.Runs) != 2 {
		t.Errorf("expected 2 runs, got total=%d len=%d", body.Total, len(body.Runs))
	}
}

func TestCancelUnknownRun(t *testing.T) {
	app, _, _ := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/runs/no-such-run/cancel", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status %d, want 404", resp.StatusCode)
	}
}

func TestResumeRun(t *testing.T) {
	app, manager, st := setupTestAPI(t)

	state := core.NewRunState(core.AccountParams{
		FirstName:   "John",
		LastName:    "Smith",
		DateOfBirth: "1995-05-15",
		Email:       "john123smith456@outlook.com",
		Password:    "wrfyh@6498$",
	})
	state.SetStatus(core.RunRunning)
	state.StepIndex = 8
	for _, step := range []string{"welcome", "email", "password", "details", "name", "captcha", "auth-wait", "post-auth"} {
		state.Append(core.NewStepResult(step, 1, core.OutcomeSuccess, time.Millisecond))
	}
	if err := st.Upsert(context.Background(), state); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/runs/"+state.ID+"/resume", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status %d, want 202", resp.StatusCode)
	}

	manager.Wait()

	got, err := manager.GetRun(state.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != core.RunSucceeded {
		t.Errorf("run ended %s, want succeeded", got.Status)
	}
}

// TestResumeLiveRunConflict holds a run inside session acquisition and checks
// that resuming it over the API reports a conflict instead of launching a
// second engine invocation.
func TestResumeLiveRunConflict(t *testing.T) {
	st, err := store.NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	factory := func(ctx context.Context) (driver.Session, error) {
		<-ctx.Done()
		return nil, core.ErrSessionUnavailable.WithCause(ctx.Err())
	}
	policy := core.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	eng := engine.New(st, factory, selector.Default(), policy, fastStepConfig())
	manager := engine.NewManager(eng, st)
	app := api.New(manager).App()

	resp := postJSON(t, app, "/runs", api.StartRunRequest{
		FirstName:   "John",
		LastName:    "Smith",
		DateOfBirth: "1995-05-15",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status %d, want 202", resp.StatusCode)
	}
	state := decodeRun(t, resp)

	req := httptest.NewRequest(http.MethodPost, "/runs/"+state.ID+"/resume", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status %d, want 409", resp.StatusCode)
	}

	if err := manager.CancelRun(state.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	manager.Wait()
}

func TestResumeUnknownRun(t *testing.T) {
	app, _, _ := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/runs/no-such-run/resume", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status %d, want 404", resp.StatusCode)
	}
}
