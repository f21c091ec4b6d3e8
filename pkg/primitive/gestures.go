package primitive

import (
	"time"

	"github.com/devicelab-dev/signup-runner/pkg/core"
	"github.com/devicelab-dev/signup-runner/pkg/driver"
)

// LongPress holds a target for the given duration. The confirm callback
// reports whether the press had its observable effect (the screen moved on);
// a completed gesture with no effect is retried natively once, then the
// low-level channel is engaged exactly once before failing. A nil confirm
// accepts any dispatched gesture.
func (a *Actions) LongPress(target string, duration time.Duration, confirm func() (bool, error)) (*core.ActionDetail, error) {
	detail := &core.ActionDetail{Action: "longpress", Target: target}

	el, findDetail, err := a.Find(target, nil)
	detail.Attempts = findDetail.Attempts
	detail.Lookups = findDetail.Lookups
	detail.Strategy = findDetail.Strategy
	detail.StrategyIndex = findDetail.StrategyIndex
	if err != nil {
		detail.Error = err.Error()
		return detail, err
	}

	// Native attempt, then one native retry with a fresh element.
	for try := 0; try < 2; try++ {
		if try > 0 {
			fresh, _, ferr := a.Find(target, nil)
			if ferr != nil {
				break
			}
			el = fresh
			detail.Attempts++
		}

		err := a.session.LongPress(el.Ref, duration)
		if err != nil {
			if core.IsSessionLost(err) {
				detail.Error = err.Error()
				return detail, err
			}
			a.log.Debug("native long press on %s rejected: %v", target, err)
			continue
		}

		ok, cerr := a.confirmed(confirm)
		if cerr != nil {
			detail.Error = cerr.Error()
			return detail, cerr
		}
		if ok {
			return detail, nil
		}
		a.log.Debug("long press on %s completed without transition, retrying", target)
	}

	if !a.policy.LowLevelFallback {
		ferr := core.ErrActionFailed.WithMessage("long press had no effect and low-level fallback is disabled")
		detail.Error = ferr.Error()
		return detail, ferr
	}

	// Low-level press-and-hold, dispatched exactly once.
	x, y, ok := a.fallbackPoint(&el.Bounds)
	if !ok {
		ferr := core.ErrActionFailed.WithMessage("no coordinates for low-level long press")
		detail.Error = ferr.Error()
		return detail, ferr
	}

	detail.FallbackUsed = true
	detail.FallbackKind = "lowlevel"
	if err := a.session.LowLevelInput(driver.HoldInputArgs(x, y, duration)...); err != nil {
		detail.Error = err.Error()
		if core.IsSessionLost(err) {
			return detail, err
		}
		return detail, core.ErrActionFailed.WithMessage("low-level long press failed").WithCause(err)
	}
	a.log.Info("long press on %s dispatched via low-level channel", target)

	okAfter, cerr := a.confirmed(confirm)
	if cerr != nil {
		detail.Error = cerr.Error()
		return detail, cerr
	}
	if !okAfter {
		ferr := core.ErrActionFailed.WithMessage("long press had no effect on any channel")
		detail.Error = ferr.Error()
		return detail, ferr
	}
	return detail, nil
}

// confirmed polls the confirmation callback over the configured window.
func (a *Actions) confirmed(confirm func() (bool, error)) (bool, error) {
	if confirm == nil {
		return true, nil
	}

	interval := a.cfg.PollInterval.Std()
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	deadline := a.clampToBudget(time.Now().Add(a.cfg.CaptchaConfirm.Std()))
	for {
		ok, err := confirm()
		if err != nil || ok {
			return ok, err
		}
		if !time.Now().Add(interval).Before(deadline) {
			return false, nil
		}
		time.Sleep(interval)
	}
}

// Scroll issues a directional screen gesture. The native swipe is preferred;
// the low-level channel covers a rejected gesture.
func (a *Actions) Scroll(direction string) (*core.ActionDetail, error) {
	detail := &core.ActionDetail{Action: "scroll", Target: direction}

	w, h, err := a.session.WindowSize()
	if err != nil {
		detail.Error = err.Error()
		if core.IsSessionLost(err) {
			return detail, err
		}
		return detail, core.ErrActionFailed.WithCause(err)
	}

	x := w / 2
	var startY, endY int
	switch direction {
	case "up":
		startY, endY = int(float64(h)*0.3), int(float64(h)*0.8)
	default: // down
		startY, endY = int(float64(h)*0.7), int(float64(h)*0.2)
	}

	const swipeDuration = time.Second
	if err := a.session.Swipe(x, startY, x, endY, swipeDuration); err == nil {
		return detail, nil
	} else if core.IsSessionLost(err) {
		detail.Error = err.Error()
		return detail, err
	}

	if !a.policy.LowLevelFallback {
		ferr := core.ErrActionFailed.WithMessage("swipe rejected and low-level fallback is disabled")
		detail.Error = ferr.Error()
		return detail, ferr
	}

	detail.FallbackUsed = true
	detail.FallbackKind = "lowlevel"
	if err := a.session.LowLevelInput(driver.SwipeInputArgs(x, startY, x, endY, swipeDuration)...); err != nil {
		detail.Error = err.Error()
		if core.IsSessionLost(err) {
			return detail, err
		}
		return detail, core.ErrActionFailed.WithMessage("scroll failed on both channels").WithCause(err)
	}
	return detail, nil
}
