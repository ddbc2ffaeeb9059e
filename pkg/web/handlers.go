package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/dukex/ruleflow/pkg/eventbus"
	"github.com/dukex/ruleflow/pkg/events"
	"github.com/dukex/ruleflow/pkg/persistence"
	"github.com/dukex/ruleflow/pkg/protocol"
	"github.com/dukex/ruleflow/pkg/registry"
	"github.com/dukex/ruleflow/pkg/rules"
	"github.com/dukex/ruleflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	dispatcher  *services.Dispatcher
	formatter   protocol.Formatter
	persistence persistence.Persistence
	registry    *registry.Registry
	publisher   eventbus.EventPublisher
	validator   *validator.Validate
}

// NewAPIHandlers creates the handlers. publisher may be nil, in which case
// dispatched jobs are returned but not queued.
func NewAPIHandlers(
	dispatcher *services.Dispatcher,
	formatter protocol.Formatter,
	persistence persistence.Persistence,
	registry *registry.Registry,
	publisher eventbus.EventPublisher,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		dispatcher:  dispatcher,
		formatter:   formatter,
		persistence: persistence,
		registry:    registry,
		publisher:   publisher,
		validator:   validator,
	}
}

func (h *APIHandlers) GetActions(c fiber.Ctx) error {
	return c.JSON(h.registry.Actions())
}

func (h *APIHandlers) GetRules(c fiber.Ctx) error {
	ruleSet, err := h.persistence.Rules(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ruleSet)
}

func (h *APIHandlers) GetRule(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Rule ID is required")
	}

	rule, err := h.persistence.RuleByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(rule)
}

// Format renders an expression against an event without creating a job.
func (h *APIHandlers) Format(c fiber.Ctx) error {
	var req FormatRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event, err := events.Unmarshal(req.Event)
	if err != nil {
		return handleServiceError(c, err)
	}

	result, err := h.formatter.Format(c.Context(), req.Expression, event)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(FormatResponse{Result: result})
}

// DispatchEvent creates the jobs of every rule triggered by the event in
// the body and queues them for the workers.
func (h *APIHandlers) DispatchEvent(c fiber.Ctx) error {
	event, err := events.Unmarshal(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	ruleSet, err := h.persistence.Rules(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	jobs, createErr := h.dispatcher.CreateJobs(c.Context(), event, ruleSet)

	if h.publisher != nil {
		for _, job := range jobs {
			err = h.publisher.PublishJob(c.Context(), job)
			if err != nil {
				return internalError(c, err)
			}
		}
	}

	response := DispatchResponse{Jobs: jobs}
	if jobs == nil {
		response.Jobs = []*rules.Job{}
	}

	if createErr != nil {
		response.Errors = unwrapJoined(createErr)
	}

	return c.Status(fiber.StatusAccepted).JSON(response)
}

// CreateRuleJob creates the job of one rule for the event in the body.
func (h *APIHandlers) CreateRuleJob(c fiber.Ctx) error {
	var req CreateJobRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event, err := events.Unmarshal(req.Event)
	if err != nil {
		return handleServiceError(c, err)
	}

	rule, err := h.persistence.RuleByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	job, err := h.dispatcher.CreateJob(c.Context(), event, rule)
	if err != nil {
		return handleServiceError(c, err)
	}

	if job == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.Status(fiber.StatusCreated).JSON(job)
}

// ExecuteJob runs a job synchronously and returns its result.
func (h *APIHandlers) ExecuteJob(c fiber.Ctx) error {
	var job rules.Job

	if err := c.Bind().JSON(&job); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if job.ActionKind == "" {
		return badRequest(c, "action_kind is required")
	}

	result := h.dispatcher.ExecuteJob(c.Context(), &job)

	return c.JSON(ExecuteJobResponse{JobID: job.ID, Result: result})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Rules are readable"
	httpStatus := http.StatusOK

	err := h.persistence.HealthCheck(c.Context())
	if err != nil {
		status = "unhealthy"
		message = "Rules are not readable: " + err.Error()
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"actions":   len(h.registry.Actions()),
		"timestamp": time.Now().UTC(),
	})
}

func unwrapJoined(err error) []string {
	var joined interface{ Unwrap() []error }

	if !errors.As(err, &joined) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(joined.Unwrap()))
	for _, e := range joined.Unwrap() {
		messages = append(messages, e.Error())
	}

	return messages
}

// Routes mounts the API on router.
func (h *APIHandlers) Routes(router fiber.Router) {
	router.Get("/actions", h.GetActions)
	router.Post("/format", h.Format)
	router.Post("/events", h.DispatchEvent)

	r := router.Group("/rules")
	r.Get("/", h.GetRules)
	r.Get("/:id", h.GetRule)
	r.Post("/:id/jobs", h.CreateRuleJob)

	router.Post("/jobs/execute", h.ExecuteJob)
	router.Get("/health", h.HealthCheck)
}
