package primitive

import (
	"github.com/devicelab-dev/signup-runner/pkg/core"
	"github.com/devicelab-dev/signup-runner/pkg/driver"
)

// FieldKind selects the text-entry behavior for a field.
type FieldKind int

const (
	// FieldDefault clears the field and sends the whole value.
	FieldDefault FieldKind = iota
	// FieldNumericYear enters the value with backspace clearing and
	// per-digit input. The year spinner rejects whole-value replacement
	// with an invalid-state error, so this path never issues a clear or a
	// direct value set.
	FieldNumericYear
)

// yearBackspaces is how many DEL presses clear the year field. The field
// holds at most four digits; the extra presses are harmless.
const yearBackspaces = 15

// TypeText enters a value into a target field, re-resolving the element on
// every attempt. Default fields are verified by reading the content back;
// a mismatch counts as a failed attempt.
func (a *Actions) TypeText(target, value string, kind FieldKind) (*core.ActionDetail, error) {
	detail := &core.ActionDetail{Action: "type", Target: target}

	strategies, err := a.catalog.Expand(target, nil)
	if err != nil {
		detail.Error = err.Error()
		return detail, core.ErrElementNotFound.WithCause(err)
	}

	var lastErr error
	bo := a.policy.NewBackOff()
	for attempt := 1; attempt <= a.policy.MaxAttempts; attempt++ {
		detail.Attempts = attempt

		el, found, err := a.scan(strategies, detail)
		if err != nil {
			detail.Error = err.Error()
			return detail, err
		}
		if !found {
			lastErr = core.ErrElementNotFound.WithDetails(map[string]interface{}{"target": target})
			if !a.pause(bo) {
				break
			}
			continue
		}

		// Focus before clearing. A stale tap just means the screen moved;
		// the next attempt re-resolves.
		if err := a.session.Tap(el.Ref); err != nil {
			if core.IsSessionLost(err) {
				detail.Error = err.Error()
				return detail, err
			}
			lastErr = err
			if !a.pause(bo) {
				break
			}
			continue
		}

		if kind == FieldNumericYear {
			err = a.typeYear(el.Ref, value)
		} else {
			err = a.typeDefault(el.Ref, value, detail)
		}
		if err == nil {
			return detail, nil
		}
		if core.IsSessionLost(err) {
			detail.Error = err.Error()
			return detail, err
		}
		lastErr = err

		if !a.pause(bo) {
			break
		}
	}

	ferr := core.ErrActionFailed.WithMessage("text entry failed").WithCause(lastErr)
	detail.Error = ferr.Error()
	return detail, ferr
}

// typeYear clears with backspaces and enters the value digit by digit.
func (a *Actions) typeYear(ref, value string) error {
	for i := 0; i < yearBackspaces; i++ {
		if err := a.session.PressKey(driver.KeyDelete); err != nil {
			return err
		}
	}
	for _, r := range value {
		if err := a.session.TypeText(ref, string(r)); err != nil {
			return err
		}
	}
	return nil
}

// typeDefault clears via the driver, sends the whole value, and verifies the
// resulting content where the field reports one.
func (a *Actions) typeDefault(ref, value string, detail *core.ActionDetail) error {
	if err := a.session.ClearText(ref); err != nil {
		if core.IsSessionLost(err) {
			return err
		}
		// Clear rejected: fall back to backspacing past the current value.
		current, terr := a.session.ElementText(ref)
		if terr != nil {
			return terr
		}
		for i := 0; i < len(current)+5; i++ {
			if kerr := a.session.PressKey(driver.KeyDelete); kerr != nil {
				return kerr
			}
		}
	}

	if err := a.session.TypeText(ref, value); err != nil {
		if core.IsSessionLost(err) {
			return err
		}
		if !a.policy.LowLevelFallback {
			return err
		}
		if lerr := a.session.LowLevelInput("text", value); lerr != nil {
			return err
		}
		detail.FallbackUsed = true
		detail.FallbackKind = "lowlevel"
		a.log.Info("typed %s via low-level channel", detail.Target)
	}

	// Verify when the field reports its content. Password fields echo
	// masked text, so only an outright mismatch of visible text fails.
	got, err := a.session.ElementText(ref)
	if err != nil || got == "" {
		return nil
	}
	if got != value && !masked(got) {
		return core.ErrTextMismatch.WithDetails(map[string]interface{}{
			"expected": value,
			"actual":   got,
		})
	}
	return nil
}

// masked reports whether the text reads as a masked echo (every rune the
// same bullet or asterisk).
func masked(s string) bool {
	for _, r := range s {
		if r != '•' && r != '*' {
			return false
		}
	}
	return len(s) > 0
}

// optionTarget names the templated dropdown-option selector.
const optionTarget = "details.option"

// SelectDropdown opens a dropdown and selects an option by its label. If the
// pointer path fails, selection falls back to keyboard navigation.
func (a *Actions) SelectDropdown(target, option string) (*core.ActionDetail, error) {
	detail := &core.ActionDetail{Action: "select", Target: target}

	openDetail, err := a.Click(target)
	detail.Attempts = openDetail.Attempts
	detail.Lookups = openDetail.Lookups
	if err != nil {
		detail.Error = err.Error()
		return detail, err
	}

	optStrategies, err := a.catalog.Expand(optionTarget, map[string]interface{}{"value": option})
	if err != nil {
		detail.Error = err.Error()
		return detail, core.ErrElementNotFound.WithCause(err)
	}

	bo := a.policy.NewBackOff()
	for attempt := 1; attempt <= a.policy.MaxAttempts; attempt++ {
		el, found, err := a.scan(optStrategies, detail)
		if err != nil {
			detail.Error = err.Error()
			return detail, err
		}
		if found {
			err := a.session.Tap(el.Ref)
			if err == nil {
				a.log.Debug("selected %s = %s", target, option)
				return detail, nil
			}
			if core.IsSessionLost(err) {
				detail.Error = err.Error()
				return detail, err
			}
		}
		if !a.pause(bo) {
			break
		}
	}

	// Keyboard fallback: step down the open list and confirm.
	detail.FallbackUsed = true
	detail.FallbackKind = "keyboard"
	if err := a.session.PressKey(driver.KeyDpadDown); err != nil {
		detail.Error = err.Error()
		return detail, a.selectFailed(err, target, option)
	}
	if err := a.session.PressKey(driver.KeyDpadCenter); err != nil {
		detail.Error = err.Error()
		return detail, a.selectFailed(err, target, option)
	}
	a.log.Info("selected %s via keyboard fallback", target)
	return detail, nil
}

func (a *Actions) selectFailed(err error, target, option string) error {
	if core.IsSessionLost(err) {
		return err
	}
	return core.ErrActionFailed.WithMessage("dropdown selection failed").WithDetails(map[string]interface{}{
		"target": target,
		"option": option,
	}).WithCause(err)
}
