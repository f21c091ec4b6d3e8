// Package account generates and validates the signup parameters: names,
// birth dates, national IDs, and the derived email/password credentials.
package account

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/devicelab-dev/signup-runner/pkg/core"
)

// DefaultPassword is used for every generated account.
const DefaultPassword = "wrfyh@6498$"

// EmailDomain is the provider domain for generated addresses.
const EmailDomain = "outlook.com"

// Months holds full month names in calendar order, matching the provider's
// dropdown labels.
var Months = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the account parameters against their constraints.
func Validate(params *core.AccountParams) error {
	if err := validate.Struct(params); err != nil {
		return core.ErrInvalidParams.WithCause(err)
	}
	if _, _, _, err := ParseBirthDate(params.DateOfBirth); err != nil {
		return core.ErrInvalidParams.WithCause(err)
	}
	return nil
}

// Generate fills in the derived credentials. Email and password already set
// by the caller are kept.
func Generate(params *core.AccountParams) error {
	if err := Validate(params); err != nil {
		return err
	}

	if params.Email == "" {
		params.Email = GenerateEmail(params.FirstName, params.LastName)
	}
	if params.Password == "" {
		params.Password = DefaultPassword
	}
	return nil
}

// GenerateEmail builds an address of the form
// lower(first)<3 digits>lower(last)<3 digits>@outlook.com.
func GenerateEmail(firstName, lastName string) string {
	first := strings.ReplaceAll(strings.ToLower(firstName), " ", "")
	last := strings.ReplaceAll(strings.ToLower(lastName), " ", "")

	username := fmt.Sprintf("%s%d%s%d", first, threeDigits(), last, threeDigits())
	return username + "@" + EmailDomain
}

func threeDigits() int {
	return 100 + rand.Intn(900)
}

// ParseBirthDate splits a YYYY-MM-DD date into the components the details
// screen needs: numeric day, full month name, numeric year.
func ParseBirthDate(dateOfBirth string) (day int, month string, year int, err error) {
	t, err := time.Parse("2006-01-02", dateOfBirth)
	if err != nil {
		return 0, "", 0, fmt.Errorf("invalid date format, expected YYYY-MM-DD: %q", dateOfBirth)
	}
	return t.Day(), Months[t.Month()-1], t.Year(), nil
}

// DemoParams returns the fixed demo identity used by the demo command.
func DemoParams() core.AccountParams {
	return core.AccountParams{
		FirstName:   "John",
		LastName:    "Smith",
		DateOfBirth: "1995-05-15",
		NationalID:  "DEMO123456HDFRNN01",
	}
}
