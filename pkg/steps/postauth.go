package steps

import (
	"time"

	"github.com/devicelab-dev/signup-runner/pkg/core"
)

// quickClickTargets are tried in this order on every navigation pass. The
// order follows the screens as the app presents them.
var quickClickTargets = []string{
	"postauth.maybe_later",
	"postauth.next",
	"postauth.accept",
	"postauth.continue",
	"postauth.skip",
}

// inboxProbes identify the inbox once navigation lands there.
var inboxProbes = []string{
	"inbox.search",
	"inbox.inbox",
}

// stepPostAuth traverses the variable onboarding screens toward the inbox:
// a time-budgeted fast path of probe-then-dismiss passes, then a slower
// exhaustive fallback with a bounded attempt count. Not reaching the marker
// is not fatal here; the verify step is the run's success criterion.
func stepPostAuth(c *Context) (core.StepOutcome, *core.ActionDetail, error) {
	detail := &core.ActionDetail{Action: "navigate", Target: "post-auth"}

	pause := c.Cfg.PollInterval.Std()
	if pause <= 0 {
		pause = 300 * time.Millisecond
	}

	deadline := time.Now().Add(c.Cfg.PostAuthFastBudget.Std())
	for time.Now().Before(deadline) {
		detail.Attempts++

		reached, err := c.inboxReached(detail)
		if err != nil {
			return fatal(detail, err)
		}
		if reached {
			c.Log.Info("inbox reached on fast path after %d passes", detail.Attempts)
			return core.OutcomeSuccess, detail, nil
		}

		for _, target := range quickClickTargets {
			tapped, err := c.Actions.TapQuick(target)
			if err != nil {
				detail.Error = err.Error()
				return fatal(detail, err)
			}
			if !tapped {
				continue
			}
			reached, err := c.inboxReached(detail)
			if err != nil {
				return fatal(detail, err)
			}
			if reached {
				c.Log.Info("inbox reached on fast path after %s", target)
				return core.OutcomeSuccess, detail, nil
			}
		}

		time.Sleep(pause)
	}

	// Fast path budget spent: exhaustive fallback with a hard attempt cap.
	c.Log.Info("post-auth fast path budget spent, switching to exhaustive fallback")
	detail.FallbackUsed = true
	detail.FallbackKind = "exhaustive"

	maxNav := c.Cfg.PostAuthMaxNav
	if maxNav <= 0 {
		maxNav = 8
	}
	for attempt := 1; attempt <= maxNav; attempt++ {
		detail.Attempts++

		reached, err := c.inboxReached(detail)
		if err != nil {
			return fatal(detail, err)
		}
		if reached {
			c.Log.Info("inbox reached on exhaustive fallback (attempt %d)", attempt)
			return core.OutcomeFallbackUsed, detail, nil
		}

		for _, target := range quickClickTargets {
			tapped, err := c.Actions.TapQuick(target)
			if err != nil {
				detail.Error = err.Error()
				return fatal(detail, err)
			}
			if tapped {
				break
			}
		}

		time.Sleep(pause)
	}

	// The marker was never confirmed; verify decides the run's fate.
	c.Log.Warn("post-auth navigation finished without inbox confirmation")
	return core.OutcomeFallbackUsed, detail, nil
}

// inboxReached is a single quick pass over the inbox probes.
func (c *Context) inboxReached(detail *core.ActionDetail) (bool, error) {
	for _, probe := range inboxProbes {
		_, found, err := c.Actions.FindQuick(probe)
		if err != nil {
			if core.IsSessionLost(err) {
				detail.Error = err.Error()
				return false, err
			}
			continue
		}
		if found {
			detail.Strategy = probe
			return true, nil
		}
	}
	return false, nil
}
