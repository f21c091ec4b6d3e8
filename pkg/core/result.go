package core

import "time"

// ActionDetail records how a primitive arrived at its result. One detail
// record is emitted per primitive invocation and the last one is attached
// to the step's StepResult.
type ActionDetail struct {
	Action        string `json:"action"`                 // find, click, type, select, wait, longpress, scroll
	Target        string `json:"target,omitempty"`       // logical target name
	Strategy      string `json:"strategy,omitempty"`     // strategy that succeeded
	StrategyIndex int    `json:"strategyIndex"`          // position in the declared order
	Attempts      int    `json:"attempts"`               // attempts consumed
	Lookups       int    `json:"lookups"`                // element lookups issued
	FallbackUsed  bool   `json:"fallbackUsed"`           // coordinate or low-level channel engaged
	FallbackKind  string `json:"fallbackKind,omitempty"` // coordinate, lowlevel, keyboard
	Error         string `json:"error,omitempty"`        // final error text when the primitive failed
}

// StepResult is one entry per executed step attempt. Immutable once
// appended to a RunState's history.
type StepResult struct {
	Step    string        `json:"step"`
	Attempt int           `json:"attempt"`
	Outcome StepOutcome   `json:"outcome"`
	Elapsed time.Duration `json:"elapsed"`
	Detail  *ActionDetail `json:"detail,omitempty"`
	Error   string        `json:"error,omitempty"`
	EndedAt time.Time     `json:"endedAt"`
}

// NewStepResult creates a StepResult stamped with the current time.
func NewStepResult(step string, attempt int, outcome StepOutcome, elapsed time.Duration) StepResult {
	return StepResult{
		Step:    step,
		Attempt: attempt,
		Outcome: outcome,
		Elapsed: elapsed,
		EndedAt: time.Now(),
	}
}

// WithDetail attaches a primitive detail record.
func (r StepResult) WithDetail(d *ActionDetail) StepResult {
	r.Detail = d
	return r
}

// WithError attaches the step's final error text.
func (r StepResult) WithError(err error) StepResult {
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// RunSummary aggregates a run's history for reporting.
type RunSummary struct {
	Total         int `json:"total"`
	Succeeded     int `json:"succeeded"`
	FallbackUsed  int `json:"fallbackUsed"`
	Failed        int `json:"failed"`
	TotalAttempts int `json:"totalAttempts"`
}

// Summarize computes aggregate counts over a step history.
func Summarize(history []StepResult) RunSummary {
	s := RunSummary{Total: len(history)}
	for _, r := range history {
		s.TotalAttempts += r.Attempt
		switch r.Outcome {
		case OutcomeSuccess:
			s.Succeeded++
		case OutcomeFallbackUsed:
			s.FallbackUsed++
		case OutcomeFatal:
			s.Failed++
		}
	}
	return s
}
