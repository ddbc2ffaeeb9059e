package web

import (
	"errors"

	"github.com/dukex/ruleflow/pkg/events"
	"github.com/dukex/ruleflow/pkg/formatter"
	"github.com/dukex/ruleflow/pkg/persistence"
	"github.com/dukex/ruleflow/pkg/registry"
	"github.com/dukex/ruleflow/pkg/rules"
	"github.com/dukex/ruleflow/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	return badRequestOfType(c, "validation_error", detail)
}

func badRequestOfType(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps pipeline errors to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	var serviceErr *services.ServiceError
	if errors.As(err, &serviceErr) && services.IsValidationError(serviceErr) {
		return badRequestOfType(c, serviceErr.Code, serviceErr.Error())
	}

	switch {
	case services.IsValidationError(err),
		errors.Is(err, events.ErrUnknownEventKind),
		errors.Is(err, formatter.ErrUnknownTransform),
		errors.Is(err, formatter.ErrResolution),
		errors.Is(err, registry.ErrInvalidConfig),
		errors.Is(err, rules.ErrInvalidAction),
		errors.Is(err, services.ErrConditionInvalid):
		return badRequest(c, err.Error())

	case errors.Is(err, registry.ErrActionNotRegistered):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("action_not_registered").
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case persistence.IsRuleNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("rule_not_found").
			WithDetail("rule not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	default:
		return internalError(c, err)
	}
}
