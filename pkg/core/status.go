package core

import "fmt"

// RunStatus represents the overall status of an account-creation run.
type RunStatus int

const (
	RunPending   RunStatus = iota // Created, not yet started
	RunRunning                    // Engine is driving steps
	RunSucceeded                  // Inbox verified
	RunFailed                     // A step failed fatally
	RunAbandoned                  // Cancelled or session unrecoverable
)

// String returns the string representation of RunStatus.
func (s RunStatus) String() string {
	switch s {
	case RunPending:
		return "pending"
	case RunRunning:
		return "running"
	case RunSucceeded:
		return "succeeded"
	case RunFailed:
		return "failed"
	case RunAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunSucceeded, RunFailed, RunAbandoned:
		return true
	default:
		return false
	}
}

// MarshalJSON serializes the status as its string form.
func (s RunStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON parses the string form of a status.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	parsed, err := ParseRunStatus(trimQuotes(string(data)))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseRunStatus converts a string into a RunStatus.
func ParseRunStatus(s string) (RunStatus, error) {
	switch s {
	case "pending":
		return RunPending, nil
	case "running":
		return RunRunning, nil
	case "succeeded":
		return RunSucceeded, nil
	case "failed":
		return RunFailed, nil
	case "abandoned":
		return RunAbandoned, nil
	default:
		return RunPending, fmt.Errorf("unknown run status: %q", s)
	}
}

// StepOutcome represents the result of one step attempt.
type StepOutcome int

const (
	OutcomeSuccess        StepOutcome = iota // Step completed via the primary path
	OutcomeRetrying                          // Attempt failed, another attempt follows
	OutcomeFallbackUsed                      // Step completed but only via a fallback channel
	OutcomeFatal                             // Step unrecoverable, run must stop
)

// String returns the string representation of StepOutcome.
func (o StepOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetrying:
		return "retrying"
	case OutcomeFallbackUsed:
		return "failed-fallback-used"
	case OutcomeFatal:
		return "failed-fatal"
	default:
		return "unknown"
	}
}

// IsSuccess returns true if the engine should advance past the step.
// Fallback success counts: the observable UI effect was achieved.
func (o StepOutcome) IsSuccess() bool {
	return o == OutcomeSuccess || o == OutcomeFallbackUsed
}

// MarshalJSON serializes the outcome as its string form.
func (o StepOutcome) MarshalJSON() ([]byte, error) {
	return []byte(`"` + o.String() + `"`), nil
}

// UnmarshalJSON parses the string form of an outcome.
func (o *StepOutcome) UnmarshalJSON(data []byte) error {
	parsed, err := ParseStepOutcome(trimQuotes(string(data)))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseStepOutcome converts a string into a StepOutcome.
func ParseStepOutcome(s string) (StepOutcome, error) {
	switch s {
	case "success":
		return OutcomeSuccess, nil
	case "retrying":
		return OutcomeRetrying, nil
	case "failed-fallback-used":
		return OutcomeFallbackUsed, nil
	case "failed-fatal":
		return OutcomeFatal, nil
	default:
		return OutcomeFatal, fmt.Errorf("unknown step outcome: %q", s)
	}
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// ErrorCategory classifies the type of error for retry and escalation policy.
type ErrorCategory int

const (
	ErrCategoryNone    ErrorCategory = iota // No error
	ErrCategoryElement                      // All selector strategies exhausted
	ErrCategoryAction                       // Primary and fallback input both failed
	ErrCategoryTimeout                      // Wait exceeded its budget
	ErrCategoryStep                         // Step determined the screen is unrecoverable
	ErrCategorySession                      // Driver session unusable mid-run
	ErrCategoryConfig                       // Invalid configuration or parameters
	ErrCategoryStore                        // Result sink unavailable
	ErrCategoryRun                          // Run lifecycle conflict
)

// String returns the string representation of ErrorCategory.
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryElement:
		return "element"
	case ErrCategoryAction:
		return "action"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryStep:
		return "step"
	case ErrCategorySession:
		return "session"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryStore:
		return "store"
	case ErrCategoryRun:
		return "run"
	default:
		return "unknown"
	}
}
