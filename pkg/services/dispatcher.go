package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/ruleflow/pkg/events"
	"github.com/dukex/ruleflow/pkg/models"
	"github.com/dukex/ruleflow/pkg/otelhelper"
	"github.com/dukex/ruleflow/pkg/protocol"
	"github.com/dukex/ruleflow/pkg/rules"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ActionRegistry resolves action kinds to handlers.
type ActionRegistry interface {
	Handler(kind string) (rules.ActionHandler, error)
	Validate(kind string, config json.RawMessage) error
}

// Dispatcher turns events into jobs for the rules they trigger and
// executes those jobs.
type Dispatcher struct {
	registry   ActionRegistry
	formatter  protocol.Formatter
	tracer     trace.Tracer
	logger     *slog.Logger
	expiration time.Duration
	now        func() time.Time
}

func NewDispatcher(registry ActionRegistry, formatter protocol.Formatter, tracer trace.Tracer, logger *slog.Logger) *Dispatcher {
	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		registry:   registry,
		formatter:  formatter,
		tracer:     tracer,
		logger:     logger.With("module", "dispatcher"),
		expiration: rules.DefaultJobExpiration,
		now:        time.Now,
	}
}

// CreateJobs creates one job per rule triggered by event. A rule that fails
// to create its job does not stop the others; the failures are joined into
// the returned error.
func (d *Dispatcher) CreateJobs(ctx context.Context, event events.EnrichedEvent, ruleSet []*models.Rule) ([]*rules.Job, error) {
	if event == nil {
		return nil, NewValidationError("CreateJobs", "event_required", "event is required", ErrEventNil)
	}

	var (
		jobs []*rules.Job
		errs []error
	)

	for _, rule := range ruleSet {
		if rule == nil || !rule.Matches(event) {
			continue
		}

		triggered, err := d.conditionMet(ctx, event, rule)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		if !triggered {
			continue
		}

		job, err := d.CreateJob(ctx, event, rule)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		if job != nil {
			jobs = append(jobs, job)
		}
	}

	return jobs, errors.Join(errs...)
}

// CreateJob creates the job of a single rule. It returns nil when the
// handler ignores the event.
func (d *Dispatcher) CreateJob(ctx context.Context, event events.EnrichedEvent, rule *models.Rule) (*rules.Job, error) {
	if rule == nil {
		return nil, NewValidationError("CreateJob", "rule_required", "rule is required", ErrRuleNil)
	}

	if event == nil {
		return nil, NewValidationError("CreateJob", "event_required", "event is required", ErrEventNil)
	}

	handler, err := d.registry.Handler(rule.Action.Kind)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}

	config, err := rule.Action.ConfigJSON()
	if err != nil {
		return nil, NewValidationError("CreateJob", "invalid_action_config", "rule "+rule.ID+": "+err.Error(),
			fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}

	err = d.registry.Validate(rule.Action.Kind, config)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}

	description, data, err := handler.CreateJob(ctx, event, config)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}

	if description == rules.IgnoreDescription {
		d.logger.DebugContext(ctx, "Rule ignored event", "rule_id", rule.ID, "event", event.EventName())

		return nil, nil
	}

	now := d.now()

	job := &rules.Job{
		ID:          uuid.NewString(),
		AppID:       event.Base().AppID.ID,
		RuleID:      rule.ID,
		EventName:   event.EventName(),
		ActionKind:  rule.Action.Kind,
		Description: description,
		JobData:     data,
		Created:     now,
		Expires:     now.Add(d.expiration),
	}

	d.logger.DebugContext(ctx, "Created job", "job_id", job.ID, "rule_id", rule.ID, "description", description)

	return job, nil
}

// ExecuteJob runs job through its handler. It never returns an error;
// every failure is part of the result.
func (d *Dispatcher) ExecuteJob(ctx context.Context, job *rules.Job) rules.Result {
	if job == nil {
		return rules.Failed(ErrJobNil, "")
	}

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "rules.execute_job",
		attribute.String(otelhelper.JobIDKey, job.ID),
		attribute.String(otelhelper.RuleIDKey, job.RuleID),
		attribute.String(otelhelper.AppIDKey, job.AppID),
		attribute.String(otelhelper.ActionKindKey, job.ActionKind),
		attribute.String(otelhelper.EventNameKey, job.EventName),
	)
	defer span.End()

	logger := d.logger.With("job_id", job.ID, "rule_id", job.RuleID, "action_kind", job.ActionKind)

	result := d.execute(ctx, job)

	otelhelper.RecordResult(span, string(result.Status), result.Err)

	switch {
	case result.IsFailed():
		logger.WarnContext(ctx, "Job failed", "error", result.Err)
	case result.IsIgnored():
		logger.InfoContext(ctx, "Job ignored")
	default:
		logger.InfoContext(ctx, "Job succeeded")
	}

	return result
}

func (d *Dispatcher) execute(ctx context.Context, job *rules.Job) rules.Result {
	if job.IsExpired(d.now()) {
		return rules.Failed(fmt.Errorf("%w: %s", ErrJobExpired, job.Expires.Format(time.RFC3339)), "")
	}

	handler, err := d.registry.Handler(job.ActionKind)
	if err != nil {
		return rules.Failed(err, "")
	}

	return handler.ExecuteJob(ctx, job.JobData)
}

func (d *Dispatcher) conditionMet(ctx context.Context, event events.EnrichedEvent, rule *models.Rule) (bool, error) {
	condition := strings.TrimSpace(rule.Trigger.Condition)
	if condition == "" {
		return true, nil
	}

	result, err := d.formatter.Format(ctx, "Script("+condition+")", event)
	if err != nil {
		return false, fmt.Errorf("rule %s: %w: %w", rule.ID, ErrConditionInvalid, err)
	}

	return strings.TrimSpace(result) == "true", nil
}
