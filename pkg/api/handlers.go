package api

import (
	"github.com/gofiber/fiber/v3"

	"github.com/devicelab-dev/signup-runner/pkg/core"
)

// StartRunRequest is the POST /runs payload. Email and password are
// optional; missing credentials are generated before the run starts.
type StartRunRequest struct {
	FirstName   string `json:"firstName"   validate:"required,min=1,max=64"`
	LastName    string `json:"lastName"    validate:"required,min=1,max=64"`
	DateOfBirth string `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	NationalID  string `json:"nationalId"  validate:"omitempty,alphanum,max=32"`
	Email       string `json:"email"       validate:"omitempty,email"`
	Password    string `json:"password"    validate:"omitempty,min=8"`
}

func (a *API) startRun(c fiber.Ctx) error {
	var req StartRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	if err := a.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	state, err := a.manager.StartRun(core.AccountParams{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: req.DateOfBirth,
		NationalID:  req.NationalID,
		Email:       req.Email,
		Password:    req.Password,
	})
	if err != nil {
		return handleRunError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(state)
}

func (a *API) getRun(c fiber.Ctx) error {
	state, err := a.manager.GetRun(c.Params("id"))
	if err != nil {
		return handleRunError(c, err)
	}
	return c.JSON(state)
}

func (a *API) listRuns(c fiber.Ctx) error {
	runs, err := a.manager.ListRuns()
	if err != nil {
		return handleRunError(c, err)
	}
	return c.JSON(fiber.Map{
		"runs":  runs,
		"total": len(runs),
	})
}

func (a *API) cancelRun(c fiber.Ctx) error {
	if err := a.manager.CancelRun(c.Params("id")); err != nil {
		return handleRunError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (a *API) resumeRun(c fiber.Ctx) error {
	state, err := a.manager.ResumeRun(c.Params("id"))
	if err != nil {
		return handleRunError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(state)
}
