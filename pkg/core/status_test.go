package core

import (
	"encoding/json"
	"testing"
)

func TestRunStatusString(t *testing.T) {
	tests := []struct {
		status RunStatus
		want   string
	}{
		{RunPending, "pending"},
		{RunRunning, "running"},
		{RunSucceeded, "succeeded"},
		{RunFailed, "failed"},
		{RunAbandoned, "abandoned"},
		{RunStatus(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status RunStatus
		want   bool
	}{
		{RunPending, false},
		{RunRunning, false},
		{RunSucceeded, true},
		{RunFailed, true},
		{RunAbandoned, true},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunStatusJSONRoundTrip(t *testing.T) {
	for _, s := range []RunStatus{RunPending, RunRunning, RunSucceeded, RunFailed, RunAbandoned} {
		data, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", s, err)
		}
		var back RunStatus
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if back != s {
			t.Errorf("round trip = %v, want %v", back, s)
		}
	}
}

func TestStepOutcomeString(t *testing.T) {
	tests := []struct {
		outcome StepOutcome
		want    string
	}{
		{OutcomeSuccess, "success"},
		{OutcomeRetrying, "retrying"},
		{OutcomeFallbackUsed, "failed-fallback-used"},
		{OutcomeFatal, "failed-fatal"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.outcome.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStepOutcomeIsSuccess(t *testing.T) {
	tests := []struct {
		outcome StepOutcome
		want    bool
	}{
		{OutcomeSuccess, true},
		{OutcomeFallbackUsed, true},
		{OutcomeRetrying, false},
		{OutcomeFatal, false},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			if got := tt.outcome.IsSuccess(); got != tt.want {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseRunStatusUnknown(t *testing.T) {
	if _, err := ParseRunStatus("bogus"); err == nil {
		t.Error("expected error for unknown status")
	}
}
