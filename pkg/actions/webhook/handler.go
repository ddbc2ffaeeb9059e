package webhook

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/ruleflow/pkg/events"
	"github.com/dukex/ruleflow/pkg/protocol"
	"github.com/dukex/ruleflow/pkg/rules"
)

var ErrUnexpectedStatus = errors.New("unexpected response status")

// maxResponseBody caps how much of a response ends up in the dump.
const maxResponseBody = 64 * 1024

type Handler struct {
	formatter protocol.Formatter
	client    *http.Client
	timeout   time.Duration
	logger    *slog.Logger
}

func NewHandler(formatter protocol.Formatter, client *http.Client, timeout time.Duration, logger *slog.Logger) *Handler {
	if client == nil {
		client = http.DefaultClient
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		formatter: formatter,
		client:    client,
		timeout:   timeout,
		logger:    logger.With("module", "webhook_action"),
	}
}

func (h *Handler) CreateJob(ctx context.Context, event events.EnrichedEvent, action Action) (string, Job, error) {
	requestURL, err := h.formatter.Format(ctx, action.URL, event)
	if err != nil {
		return "", Job{}, fmt.Errorf("failed to format url: %w", err)
	}

	var body string

	if strings.TrimSpace(action.Payload) != "" {
		body, err = h.formatter.Format(ctx, action.Payload, event)
	} else {
		body, err = h.formatter.ToEnvelope(event)
	}

	if err != nil {
		return "", Job{}, fmt.Errorf("failed to format payload: %w", err)
	}

	job := Job{
		RequestURL:       requestURL,
		RequestBody:      body,
		RequestSignature: Sign(body, action.SharedSecret),
	}

	h.logger.DebugContext(ctx, "Created webhook job", "url", requestURL, "event", event.EventName())

	return "Send event to webhook " + requestURL, job, nil
}

func (h *Handler) ExecuteJob(ctx context.Context, job Job) rules.Result {
	if strings.TrimSpace(job.RequestURL) == "" {
		return rules.Ignored()
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.RequestURL, bytes.NewBufferString(job.RequestBody))
	if err != nil {
		return rules.Failed(fmt.Errorf("failed to create request: %w", err), "")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set(SignatureHeader, job.RequestSignature)

	h.logger.InfoContext(ctx, "Sending webhook", "url", job.RequestURL)

	start := time.Now()

	resp, err := h.client.Do(req)
	if err != nil {
		elapsed := time.Since(start)

		return rules.Failed(fmt.Errorf("failed to send webhook: %w", err), rules.BuildDump(req, nil, job.RequestBody, err.Error(), elapsed))
	}
	defer resp.Body.Close()

	responseBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	elapsed := time.Since(start)

	dump := rules.BuildDump(req, resp, job.RequestBody, string(responseBody), elapsed)

	if readErr != nil {
		return rules.Failed(fmt.Errorf("failed to read response: %w", readErr), dump)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return rules.Failed(fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status), dump)
	}

	h.logger.InfoContext(ctx, "Webhook delivered", "url", job.RequestURL, "status", resp.StatusCode, "elapsed", elapsed)

	return rules.Success(dump)
}

// Sign returns base64(sha256(body + secret)).
func Sign(body, secret string) string {
	sum := sha256.Sum256([]byte(body + secret))

	return base64.StdEncoding.EncodeToString(sum[:])
}
