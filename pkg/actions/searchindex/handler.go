package searchindex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/ruleflow/pkg/clientpool"
	"github.com/dukex/ruleflow/pkg/events"
	"github.com/dukex/ruleflow/pkg/protocol"
	"github.com/dukex/ruleflow/pkg/rules"
)

type Handler struct {
	formatter protocol.Formatter
	pool      *clientpool.Pool[IndexKey, Index]
	logger    *slog.Logger
}

// NewHandler creates a handler whose index clients are built by factory and
// cached in a pool of the given capacity.
func NewHandler(formatter protocol.Formatter, factory clientpool.Factory[IndexKey, Index], capacity int, logger *slog.Logger) *Handler {
	if factory == nil {
		factory = NewAlgoliaIndex
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		formatter: formatter,
		pool:      clientpool.New(factory, clientpool.WithCapacity[IndexKey, Index](capacity)),
		logger:    logger.With("module", "searchindex_action"),
	}
}

func (h *Handler) CreateJob(ctx context.Context, event events.EnrichedEvent, action Action) (string, Job, error) {
	content, ok := event.(*events.ContentEvent)
	if !ok {
		return rules.IgnoreDescription, Job{}, nil
	}

	indexName, err := h.formatter.Format(ctx, action.IndexName, event)
	if err != nil {
		return "", Job{}, fmt.Errorf("failed to format index name: %w", err)
	}

	job := Job{
		AppID:     action.AppID,
		APIKey:    action.APIKey,
		IndexName: indexName,
		ContentID: content.ID,
	}

	if content.IsRemoval() {
		return fmt.Sprintf("Delete entry from index %s", indexName), job, nil
	}

	document, err := h.document(ctx, content, action.Document)
	if err != nil {
		return "", Job{}, err
	}

	document[ObjectIDField] = content.ID
	job.Content = document

	h.logger.DebugContext(ctx, "Created index job", "index", indexName, "content_id", content.ID)

	return fmt.Sprintf("Add entry to index %s", indexName), job, nil
}

// document renders the configured document or falls back to the event
// payload. A document that is not a JSON object is replaced by an error
// document so the failure stays visible in the index.
func (h *Handler) document(ctx context.Context, event *events.ContentEvent, expression string) (map[string]any, error) {
	if strings.TrimSpace(expression) == "" {
		payload, err := h.formatter.ToPayload(event)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize event: %w", err)
		}

		return payload, nil
	}

	rendered, err := h.formatter.Format(ctx, expression, event)
	if err != nil {
		return nil, fmt.Errorf("failed to format document: %w", err)
	}

	var document map[string]any

	err = json.Unmarshal([]byte(strings.TrimSpace(rendered)), &document)
	if err != nil || document == nil {
		reason := "document is null"
		if err != nil {
			reason = err.Error()
		}

		return map[string]any{"error": "Invalid JSON: " + reason}, nil
	}

	return document, nil
}

func (h *Handler) ExecuteJob(ctx context.Context, job Job) rules.Result {
	if strings.TrimSpace(job.AppID) == "" {
		return rules.Ignored()
	}

	index, err := h.pool.Get(ctx, job.key())
	if err != nil {
		return rules.Failed(fmt.Errorf("failed to create index client: %w", err), "")
	}

	var response any

	if job.IsDelete() {
		h.logger.InfoContext(ctx, "Deleting index entry", "index", job.IndexName, "content_id", job.ContentID)
		response, err = index.DeleteObject(ctx, job.ContentID)
	} else {
		h.logger.InfoContext(ctx, "Updating index entry", "index", job.IndexName, "content_id", job.ContentID)
		response, err = index.PartialUpdateObject(ctx, job.Content)
	}

	if err != nil {
		return rules.Failed(fmt.Errorf("index request failed: %w", err), "")
	}

	return rules.Success(rules.DumpObject(response))
}
