// Package webhook posts enriched events to HTTP endpoints.
package webhook

import "time"

const (
	Kind = "Webhook"

	// DefaultTimeout bounds a single delivery attempt.
	DefaultTimeout = 2 * time.Second

	UserAgent = "Ruleflow Webhook"

	SignatureHeader = "X-Signature"
)

// Action is the webhook configuration of a rule. URL and Payload are format
// expressions.
type Action struct {
	URL          string `json:"url"           validate:"required"`
	SharedSecret string `json:"shared_secret"`
	Payload      string `json:"payload,omitempty"`
}

// Job is a delivery ready to be sent.
type Job struct {
	RequestURL       string `json:"request_url"`
	RequestBody      string `json:"request_body"`
	RequestSignature string `json:"request_signature"`
}
