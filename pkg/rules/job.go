package rules

import (
	"encoding/json"
	"time"
)

// DefaultJobExpiration is how long a created job stays executable.
const DefaultJobExpiration = 48 * time.Hour

// Job is the serializable envelope of one action invocation. JobData holds
// the action kind specific job.
type Job struct {
	ID          string          `json:"id"`
	AppID       string          `json:"app_id"`
	RuleID      string          `json:"rule_id,omitempty"`
	EventName   string          `json:"event_name"`
	ActionKind  string          `json:"action_kind"`
	Description string          `json:"description"`
	JobData     json.RawMessage `json:"job_data"`
	Created     time.Time       `json:"created"`
	Expires     time.Time       `json:"expires"`
}

func (j Job) IsExpired(now time.Time) bool {
	return !j.Expires.IsZero() && now.After(j.Expires)
}
