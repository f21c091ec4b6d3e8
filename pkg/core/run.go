// Package core defines the run state machine types shared by the engine,
// the step library, the result store, and the caller-facing surfaces.
package core

import (
	"time"

	"github.com/google/uuid"
)

// AccountParams are the inputs for one account-creation attempt. Email and
// Password are filled in by credential generation before the run starts.
type AccountParams struct {
	FirstName   string `json:"firstName" validate:"required,min=1,max=64"`
	LastName    string `json:"lastName" validate:"required,min=1,max=64"`
	DateOfBirth string `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	NationalID  string `json:"nationalId,omitempty" validate:"omitempty,alphanum,max=32"`
	Email       string `json:"email,omitempty"`
	Password    string `json:"password,omitempty"`
}

// RunState identifies one account-creation attempt. Exclusively owned by a
// single engine invocation while status is running; terminal once status
// leaves running.
type RunState struct {
	ID        string        `json:"id"`
	Params    AccountParams `json:"params"`
	StepIndex int           `json:"stepIndex"`
	History   []StepResult  `json:"history"`
	Status    RunStatus     `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NewRunState creates a pending RunState for the given parameters.
func NewRunState(params AccountParams) *RunState {
	now := time.Now()
	return &RunState{
		ID:        NewRunID(),
		Params:    params,
		Status:    RunPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append records a step result and advances the update timestamp.
func (r *RunState) Append(res StepResult) {
	r.History = append(r.History, res)
	r.UpdatedAt = time.Now()
}

// SetStatus transitions the run status.
func (r *RunState) SetStatus(s RunStatus) {
	r.Status = s
	r.UpdatedAt = time.Now()
}

// Clone returns a deep copy so stores and callers never alias the
// engine-owned state.
func (r *RunState) Clone() *RunState {
	cp := *r
	cp.History = make([]StepResult, len(r.History))
	copy(cp.History, r.History)
	return &cp
}

// Summary computes aggregate counts over the run's history.
func (r *RunState) Summary() RunSummary {
	return Summarize(r.History)
}
