// Package steps holds one handler per screen of the signup flow. Each
// handler is built from the action primitives plus that screen's edge-case
// logic, and reports one of the defined step outcomes. Handlers never leak
// raw errors past the step boundary except session loss, which the engine
// handles itself.
package steps

import (
	"time"

	"github.com/devicelab-dev/signup-runner/pkg/config"
	"github.com/devicelab-dev/signup-runner/pkg/core"
	"github.com/devicelab-dev/signup-runner/pkg/logger"
	"github.com/devicelab-dev/signup-runner/pkg/primitive"
)

// Context carries everything a step handler needs for one invocation.
type Context struct {
	Run     *core.RunState
	Actions *primitive.Actions
	Cfg     config.StepConfig
	Log     *logger.RunLogger

	// Deadline bounds the whole step, retries included.
	Deadline time.Time
}

// Expired reports whether the step budget has run out.
func (c *Context) Expired() bool {
	return !c.Deadline.IsZero() && time.Now().After(c.Deadline)
}

// Handler executes one screen and reports its outcome. The returned error
// carries diagnostics for non-success outcomes; session loss is returned
// as-is for the engine to handle.
type Handler func(*Context) (core.StepOutcome, *core.ActionDetail, error)

// Step pairs a screen name with its handler.
type Step struct {
	Name string
	Run  Handler
}

// Sequence returns the fixed, ordered step table for the signup flow.
func Sequence() []Step {
	return []Step{
		{Name: "welcome", Run: stepWelcome},
		{Name: "email", Run: stepEmail},
		{Name: "password", Run: stepPassword},
		{Name: "details", Run: stepDetails},
		{Name: "name", Run: stepName},
		{Name: "captcha", Run: stepCaptcha},
		{Name: "auth-wait", Run: stepAuthWait},
		{Name: "post-auth", Run: stepPostAuth},
		{Name: "verify", Run: stepVerify},
	}
}

// outcomeFor maps a completed primitive to its step outcome: success, or
// fallback-used when a secondary channel carried the action.
func outcomeFor(details ...*core.ActionDetail) core.StepOutcome {
	for _, d := range details {
		if d != nil && d.FallbackUsed {
			return core.OutcomeFallbackUsed
		}
	}
	return core.OutcomeSuccess
}

// fatal wraps a primitive failure as the step's terminal outcome.
func fatal(detail *core.ActionDetail, err error) (core.StepOutcome, *core.ActionDetail, error) {
	return core.OutcomeFatal, detail, err
}
