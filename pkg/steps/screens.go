package steps

import (
	"strconv"

	"github.com/devicelab-dev/signup-runner/pkg/account"
	"github.com/devicelab-dev/signup-runner/pkg/core"
	"github.com/devicelab-dev/signup-runner/pkg/primitive"
)

// stepWelcome taps the create-account entry point.
func stepWelcome(c *Context) (core.StepOutcome, *core.ActionDetail, error) {
	detail, err := c.Actions.Click("welcome.create_account")
	if err != nil {
		return fatal(detail, err)
	}
	return outcomeFor(detail), detail, nil
}

// stepEmail types the generated address and advances.
func stepEmail(c *Context) (core.StepOutcome, *core.ActionDetail, error) {
	typed, err := c.Actions.TypeText("email.email_field", c.Run.Params.Email, primitive.FieldDefault)
	if err != nil {
		return fatal(typed, err)
	}

	next, err := c.Actions.PressNext()
	if err != nil {
		return fatal(next, err)
	}
	return outcomeFor(typed, next), typed, nil
}

// stepPassword types the password and advances.
func stepPassword(c *Context) (core.StepOutcome, *core.ActionDetail, error) {
	typed, err := c.Actions.TypeText("password.password_field", c.Run.Params.Password, primitive.FieldDefault)
	if err != nil {
		return fatal(typed, err)
	}

	next, err := c.Actions.PressNext()
	if err != nil {
		return fatal(next, err)
	}
	return outcomeFor(typed, next), typed, nil
}

// detailsTries is how many times the whole birth-details sequence is run
// before giving up. The date controls can land in an inconsistent visual
// state where only restarting the sequence recovers.
const detailsTries = 2

// stepDetails selects day and month and types the year. A failure of any
// sub-action restarts the whole sequence, not just the failing control.
func stepDetails(c *Context) (core.StepOutcome, *core.ActionDetail, error) {
	day, month, year, err := account.ParseBirthDate(c.Run.Params.DateOfBirth)
	if err != nil {
		return fatal(nil, core.ErrInvalidParams.WithCause(err))
	}

	var detail *core.ActionDetail
	var lastErr error
	for try := 1; try <= detailsTries; try++ {
		if c.Expired() {
			break
		}

		var fallback bool
		detail, fallback, lastErr = fillBirthDetails(c, day, month, year)
		if lastErr == nil {
			next, err := c.Actions.PressNext()
			if err != nil {
				if core.IsSessionLost(err) {
					return fatal(next, err)
				}
				lastErr = err
				continue
			}
			if fallback || next.FallbackUsed {
				return core.OutcomeFallbackUsed, detail, nil
			}
			return core.OutcomeSuccess, detail, nil
		}
		if core.IsSessionLost(lastErr) {
			return fatal(detail, lastErr)
		}
		c.Log.Warn("birth details sequence failed (try %d/%d): %v", try, detailsTries, lastErr)
	}

	return fatal(detail, core.ErrStepFatal.WithMessage("birth details could not be entered").WithCause(lastErr))
}

// fillBirthDetails runs the three birth-date controls in order and reports
// whether any of them needed a fallback channel.
func fillBirthDetails(c *Context, day int, month string, year int) (*core.ActionDetail, bool, error) {
	dayDetail, err := c.Actions.SelectDropdown("details.day_dropdown", strconv.Itoa(day))
	if err != nil {
		return dayDetail, false, err
	}

	monthDetail, err := c.Actions.SelectDropdown("details.month_dropdown", month)
	if err != nil {
		return monthDetail, dayDetail.FallbackUsed, err
	}

	yearDetail, err := c.Actions.TypeText("details.year_field", strconv.Itoa(year), primitive.FieldNumericYear)
	if err != nil {
		return yearDetail, dayDetail.FallbackUsed || monthDetail.FallbackUsed, err
	}

	fallback := dayDetail.FallbackUsed || monthDetail.FallbackUsed || yearDetail.FallbackUsed
	return yearDetail, fallback, nil
}

// stepName types both name fields and advances.
func stepName(c *Context) (core.StepOutcome, *core.ActionDetail, error) {
	first, err := c.Actions.TypeText("name.first_name_field", c.Run.Params.FirstName, primitive.FieldDefault)
	if err != nil {
		return fatal(first, err)
	}

	last, err := c.Actions.TypeText("name.last_name_field", c.Run.Params.LastName, primitive.FieldDefault)
	if err != nil {
		return fatal(last, err)
	}

	next, err := c.Actions.PressNext()
	if err != nil {
		return fatal(next, err)
	}
	return outcomeFor(first, last, next), last, nil
}

// stepCaptcha holds the confirmation control and requires the screen to
// actually transition away before the step counts as done.
func stepCaptcha(c *Context) (core.StepOutcome, *core.ActionDetail, error) {
	confirm := func() (bool, error) {
		_, found, err := c.Actions.FindQuick("captcha.captcha_button")
		if err != nil {
			return false, err
		}
		return !found, nil
	}

	detail, err := c.Actions.LongPress("captcha.captcha_button", c.Cfg.CaptchaHold.Std(), confirm)
	if err != nil {
		return fatal(detail, err)
	}
	return outcomeFor(detail), detail, nil
}

// stepAuthWait polls until the loading indicators clear. Exceeding the wait
// window means authentication hung, which is fatal rather than skippable.
func stepAuthWait(c *Context) (core.StepOutcome, *core.ActionDetail, error) {
	detail, err := c.Actions.WaitForAt("auth.progress_bar", primitive.Gone,
		c.Cfg.AuthWaitWindow.Std(), c.Cfg.AuthWaitInterval.Std())
	if err != nil {
		if core.IsSessionLost(err) {
			return fatal(detail, err)
		}
		return fatal(detail, core.ErrStepFatal.WithMessage("authentication hung").WithCause(err))
	}
	return core.OutcomeSuccess, detail, nil
}

// stepVerify confirms the inbox marker, the sole success criterion for the
// whole run.
func stepVerify(c *Context) (core.StepOutcome, *core.ActionDetail, error) {
	detail, err := c.Actions.WaitFor("inbox.search", primitive.Present, c.Cfg.ElementWait.Std())
	if err == nil {
		return core.OutcomeSuccess, detail, nil
	}
	if core.IsSessionLost(err) {
		return fatal(detail, err)
	}

	detail, err = c.Actions.WaitFor("inbox.inbox", primitive.Present, c.Cfg.ElementWait.Std())
	if err == nil {
		return core.OutcomeSuccess, detail, nil
	}
	if core.IsSessionLost(err) {
		return fatal(detail, err)
	}

	return fatal(detail, core.ErrStepFatal.WithMessage("inbox marker not found").WithCause(err))
}
