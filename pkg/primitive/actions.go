// Package primitive implements the retried, fallback-aware UI actions the
// step library is built from. Every primitive emits an ActionDetail record
// describing the strategy used, attempts consumed, and fallbacks engaged.
package primitive

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/devicelab-dev/signup-runner/pkg/config"
	"github.com/devicelab-dev/signup-runner/pkg/core"
	"github.com/devicelab-dev/signup-runner/pkg/driver"
	"github.com/devicelab-dev/signup-runner/pkg/logger"
	"github.com/devicelab-dev/signup-runner/pkg/selector"
)

// Actions binds a driver session to the selector catalog and retry policy.
// One instance serves one run.
type Actions struct {
	session  driver.Session
	catalog  *selector.Catalog
	policy   core.RetryPolicy
	cfg      config.StepConfig
	log      *logger.RunLogger
	deadline time.Time
}

// New creates the primitive set for one run.
func New(session driver.Session, catalog *selector.Catalog, policy core.RetryPolicy, cfg config.StepConfig, log *logger.RunLogger) *Actions {
	if log == nil {
		log = logger.ForRun("-")
	}
	return &Actions{
		session: session,
		catalog: catalog,
		policy:  policy,
		cfg:     cfg,
		log:     log,
	}
}

// WithDeadline bounds every retry loop and wait window to the given step
// budget. The zero time means unbounded.
func (a *Actions) WithDeadline(deadline time.Time) *Actions {
	a.deadline = deadline
	return a
}

// Session returns the underlying driver session.
func (a *Actions) Session() driver.Session {
	return a.session
}

// Find resolves a logical target, trying each catalog strategy in declared
// order with a fresh lookup per attempt. Total lookups never exceed
// len(strategies) * MaxAttempts.
func (a *Actions) Find(target string, vars map[string]interface{}) (driver.Element, *core.ActionDetail, error) {
	detail := &core.ActionDetail{Action: "find", Target: target}

	strategies, err := a.catalog.Expand(target, vars)
	if err != nil {
		detail.Error = err.Error()
		return driver.Element{}, detail, core.ErrElementNotFound.WithCause(err)
	}

	bo := a.policy.NewBackOff()
	for attempt := 1; attempt <= a.policy.MaxAttempts; attempt++ {
		detail.Attempts = attempt

		el, found, err := a.scan(strategies, detail)
		if err != nil {
			detail.Error = err.Error()
			return driver.Element{}, detail, err
		}
		if found {
			return el, detail, nil
		}

		if !a.pause(bo) {
			break
		}
	}

	ferr := core.ErrElementNotFound.WithDetails(map[string]interface{}{
		"target":   target,
		"attempts": detail.Attempts,
		"lookups":  detail.Lookups,
	})
	detail.Error = ferr.Error()
	a.log.Debug("find %s failed after %d lookups", target, detail.Lookups)
	return driver.Element{}, detail, ferr
}

// scan is one ordered pass over the strategies: the first displayed element
// wins. Only session loss aborts the pass.
func (a *Actions) scan(strategies []selector.Strategy, detail *core.ActionDetail) (driver.Element, bool, error) {
	for i, s := range strategies {
		detail.Lookups++
		els, err := a.session.FindElements(s.Kind, s.Query)
		if err != nil {
			if core.IsSessionLost(err) {
				return driver.Element{}, false, err
			}
			continue
		}
		for _, el := range els {
			if el.Displayed {
				detail.Strategy = s.Query
				detail.StrategyIndex = i
				return el, true, nil
			}
		}
	}
	return driver.Element{}, false, nil
}

// FindQuick is a single non-retried pass over a target's strategies. Used by
// the post-auth probes where speed matters more than certainty.
func (a *Actions) FindQuick(target string) (driver.Element, bool, error) {
	strategies, err := a.catalog.Expand(target, nil)
	if err != nil {
		return driver.Element{}, false, err
	}
	detail := &core.ActionDetail{Action: "find", Target: target}
	return a.scan(strategies, detail)
}

// TapQuick finds and taps a target in one pass, reporting whether anything
// was tapped. Lookup misses are not errors.
func (a *Actions) TapQuick(target string) (bool, error) {
	el, found, err := a.FindQuick(target)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := a.session.Tap(el.Ref); err != nil {
		if core.IsSessionLost(err) {
			return false, err
		}
		return false, nil
	}
	a.log.Debug("tapped %s", target)
	return true, nil
}

// Click finds and taps a target, re-resolving the element on every attempt.
// After primary attempts exhaust, a raw coordinate tap is dispatched when the
// policy permits it.
func (a *Actions) Click(target string) (*core.ActionDetail, error) {
	detail := &core.ActionDetail{Action: "click", Target: target}

	strategies, err := a.catalog.Expand(target, nil)
	if err != nil {
		detail.Error = err.Error()
		return detail, core.ErrElementNotFound.WithCause(err)
	}

	var lastBounds *driver.Bounds
	bo := a.policy.NewBackOff()
	for attempt := 1; attempt <= a.policy.MaxAttempts; attempt++ {
		detail.Attempts = attempt

		el, found, err := a.scan(strategies, detail)
		if err != nil {
			detail.Error = err.Error()
			return detail, err
		}
		if found {
			b := el.Bounds
			lastBounds = &b
			err := a.session.Tap(el.Ref)
			if err == nil {
				return detail, nil
			}
			if core.IsSessionLost(err) {
				detail.Error = err.Error()
				return detail, err
			}
			// Stale or rejected tap: fall through to a fresh lookup.
		}

		if !a.pause(bo) {
			break
		}
	}

	if a.policy.CoordinateFallback {
		x, y, ok := a.fallbackPoint(lastBounds)
		if ok {
			detail.FallbackUsed = true
			detail.FallbackKind = "coordinate"
			if err := a.session.TapPoint(x, y); err == nil {
				a.log.Info("click %s landed via coordinate fallback (%d,%d)", target, x, y)
				return detail, nil
			} else if core.IsSessionLost(err) {
				detail.Error = err.Error()
				return detail, err
			}
		}
	}

	ferr := core.ErrActionFailed.WithDetails(map[string]interface{}{
		"target":   target,
		"attempts": detail.Attempts,
	})
	detail.Error = ferr.Error()
	return detail, ferr
}

// fallbackPoint picks the coordinate-tap location: the last known element
// center, or the screen center when the element was never resolved.
func (a *Actions) fallbackPoint(bounds *driver.Bounds) (int, int, bool) {
	if bounds != nil && bounds.Width > 0 {
		x, y := bounds.Center()
		return x, y, true
	}
	w, h, err := a.session.WindowSize()
	if err != nil || w == 0 {
		return 0, 0, false
	}
	return w / 2, h / 2, true
}

// PressNext drives the shared next-button convention: the catalog strategies
// first, then the hardware ENTER key.
func (a *Actions) PressNext() (*core.ActionDetail, error) {
	detail, err := a.Click("common.next_button")
	if err == nil {
		return detail, nil
	}
	if core.IsSessionLost(err) {
		return detail, err
	}

	detail.FallbackUsed = true
	detail.FallbackKind = "keyboard"
	if kerr := a.session.PressKey(driver.KeyEnter); kerr != nil {
		if core.IsSessionLost(kerr) {
			detail.Error = kerr.Error()
			return detail, kerr
		}
		ferr := core.ErrActionFailed.WithMessage("next button and ENTER fallback both failed")
		detail.Error = ferr.Error()
		return detail, ferr
	}
	a.log.Debug("next button not found, ENTER fallback pressed")
	detail.Error = ""
	return detail, nil
}

// pause sleeps for the next backoff interval, reporting false once the
// schedule is exhausted or the next interval would cross the step budget.
func (a *Actions) pause(bo backoff.BackOff) bool {
	d := bo.NextBackOff()
	if d == backoff.Stop {
		return false
	}
	if !a.deadline.IsZero() && !time.Now().Add(d).Before(a.deadline) {
		return false
	}
	time.Sleep(d)
	return true
}

// clampToBudget trims a wait window so it never extends past the step budget.
func (a *Actions) clampToBudget(deadline time.Time) time.Time {
	if !a.deadline.IsZero() && a.deadline.Before(deadline) {
		return a.deadline
	}
	return deadline
}
