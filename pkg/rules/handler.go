package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/ruleflow/pkg/events"
	"github.com/go-playground/validator/v10"
)

// IgnoreDescription is returned by CreateJob for events a handler does not act on.
const IgnoreDescription = "Ignore"

var (
	ErrInvalidAction = errors.New("invalid action")
	ErrInvalidJob    = errors.New("invalid job")
)

// Handler is implemented once per action kind. A is the action
// configuration and J the job it produces.
//
// CreateJob may format the event but must not contact the external system.
// ExecuteJob performs exactly one external interaction and folds every
// failure into the returned Result.
type Handler[A any, J any] interface {
	CreateJob(ctx context.Context, event events.EnrichedEvent, action A) (string, J, error)
	ExecuteJob(ctx context.Context, job J) Result
}

// ActionHandler is a Handler with action and job carried as JSON, so that
// jobs can be stored or queued between creation and execution.
type ActionHandler interface {
	Kind() string
	CreateJob(ctx context.Context, event events.EnrichedEvent, action json.RawMessage) (string, json.RawMessage, error)
	ExecuteJob(ctx context.Context, job json.RawMessage) Result
}

type actionHandler[A any, J any] struct {
	kind     string
	handler  Handler[A, J]
	validate *validator.Validate
}

// NewActionHandler wraps a typed handler. Actions are validated with
// validate when it is not nil.
func NewActionHandler[A any, J any](kind string, handler Handler[A, J], validate *validator.Validate) ActionHandler {
	return &actionHandler[A, J]{
		kind:     kind,
		handler:  handler,
		validate: validate,
	}
}

func (h *actionHandler[A, J]) Kind() string {
	return h.kind
}

func (h *actionHandler[A, J]) CreateJob(ctx context.Context, event events.EnrichedEvent, action json.RawMessage) (string, json.RawMessage, error) {
	var typed A

	err := json.Unmarshal(action, &typed)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %w", ErrInvalidAction, h.kind, err)
	}

	if h.validate != nil {
		err = h.validate.Struct(typed)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %w", ErrInvalidAction, h.kind, err)
		}
	}

	description, job, err := h.handler.CreateJob(ctx, event, typed)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create %s job: %w", h.kind, err)
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal %s job: %w", h.kind, err)
	}

	return description, data, nil
}

func (h *actionHandler[A, J]) ExecuteJob(ctx context.Context, data json.RawMessage) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Failed(fmt.Errorf("%w: %v", ErrPanic, r), "")
		}
	}()

	var job J

	err := json.Unmarshal(data, &job)
	if err != nil {
		return Failed(fmt.Errorf("%w: %s: %w", ErrInvalidJob, h.kind, err), "")
	}

	result = h.handler.ExecuteJob(ctx, job)

	if result.IsFailed() && errors.Is(result.Err, context.DeadlineExceeded) && !errors.Is(result.Err, ErrTimeout) {
		result.Err = fmt.Errorf("%w: %w", ErrTimeout, result.Err)
	}

	return result
}
