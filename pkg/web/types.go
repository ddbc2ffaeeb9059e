// Package web provides the HTTP API for previewing, creating and executing rule jobs.
package web

import (
	"encoding/json"

	"github.com/dukex/ruleflow/pkg/rules"
)

// FormatRequest previews a format expression against an event. Event uses
// the {"kind", "event"} envelope.
type FormatRequest struct {
	Expression string          `json:"expression"`
	Event      json.RawMessage `json:"event"      validate:"required"`
}

type FormatResponse struct {
	Result string `json:"result"`
}

// CreateJobRequest creates the job of one rule for an event without
// executing it.
type CreateJobRequest struct {
	Event json.RawMessage `json:"event" validate:"required"`
}

type DispatchResponse struct {
	Jobs   []*rules.Job `json:"jobs"`
	Errors []string     `json:"errors,omitempty"`
}

type ExecuteJobResponse struct {
	JobID  string       `json:"job_id"`
	Result rules.Result `json:"result"`
}
