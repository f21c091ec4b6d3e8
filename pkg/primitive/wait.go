package primitive

import (
	"time"

	"github.com/devicelab-dev/signup-runner/pkg/core"
	"github.com/devicelab-dev/signup-runner/pkg/selector"
)

// Condition is what WaitFor polls for.
type Condition int

const (
	// Present holds when any element matches, displayed or not.
	Present Condition = iota
	// Visible holds when a displayed element matches.
	Visible
	// Gone holds when no displayed element matches.
	Gone
)

func (c Condition) String() string {
	switch c {
	case Present:
		return "present"
	case Visible:
		return "visible"
	case Gone:
		return "gone"
	default:
		return "unknown"
	}
}

// WaitFor polls a target at the configured interval until the condition
// holds or the timeout elapses. A timeout is reported as ErrWaitTimeout; the
// caller decides whether that is fatal.
func (a *Actions) WaitFor(target string, cond Condition, timeout time.Duration) (*core.ActionDetail, error) {
	return a.WaitForAt(target, cond, timeout, a.cfg.PollInterval.Std())
}

// WaitForAt is WaitFor with a caller-chosen polling interval.
func (a *Actions) WaitForAt(target string, cond Condition, timeout, interval time.Duration) (*core.ActionDetail, error) {
	detail := &core.ActionDetail{Action: "wait", Target: target}

	strategies, err := a.catalog.Expand(target, nil)
	if err != nil {
		detail.Error = err.Error()
		return detail, core.ErrElementNotFound.WithCause(err)
	}

	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	deadline := a.clampToBudget(time.Now().Add(timeout))
	for {
		detail.Attempts++

		holds, err := a.check(strategies, cond, detail)
		if err != nil {
			detail.Error = err.Error()
			return detail, err
		}
		if holds {
			return detail, nil
		}

		if !time.Now().Add(interval).Before(deadline) {
			break
		}
		time.Sleep(interval)
	}

	ferr := core.ErrWaitTimeout.WithDetails(map[string]interface{}{
		"target":    target,
		"condition": cond.String(),
		"timeout":   timeout.String(),
	})
	detail.Error = ferr.Error()
	return detail, ferr
}

// check is one poll: a single ordered pass over the strategies evaluated
// against the condition.
func (a *Actions) check(strategies []selector.Strategy, cond Condition, detail *core.ActionDetail) (bool, error) {
	anyMatch := false
	anyVisible := false

	for i, s := range strategies {
		detail.Lookups++
		els, err := a.session.FindElements(s.Kind, s.Query)
		if err != nil {
			if core.IsSessionLost(err) {
				return false, err
			}
			continue
		}
		if len(els) > 0 {
			anyMatch = true
		}
		for _, el := range els {
			if el.Displayed {
				anyVisible = true
				detail.Strategy = s.Query
				detail.StrategyIndex = i
			}
		}
	}

	switch cond {
	case Present:
		return anyMatch, nil
	case Visible:
		return anyVisible, nil
	case Gone:
		return !anyVisible, nil
	default:
		return false, nil
	}
}
