// Package rules defines the contract between rule actions and the pipeline
// that dispatches them: typed handlers, job envelopes and execution results.
package rules

import (
	"encoding/json"
	"errors"
)

type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
	StatusIgnored Status = "Ignored"
)

var (
	// ErrTimeout marks executions that ran out of time.
	ErrTimeout = errors.New("execution timed out")
	// ErrPanic marks executions that crashed.
	ErrPanic = errors.New("execution panicked")
)

// Result is the outcome of one job execution. Dump is set for Success and
// Failed, Err only for Failed.
type Result struct {
	Status Status
	Dump   string
	Err    error
}

func Success(dump string) Result {
	return Result{Status: StatusSuccess, Dump: dump}
}

// Failed creates a failed result. When dump is empty the error text is used
// so that a failure always has an audit record.
func Failed(err error, dump string) Result {
	if err == nil {
		err = errors.New("unknown failure")
	}

	if dump == "" {
		dump = err.Error()
	}

	return Result{Status: StatusFailed, Dump: dump, Err: err}
}

func Ignored() Result {
	return Result{Status: StatusIgnored}
}

func (r Result) IsSuccess() bool {
	return r.Status == StatusSuccess
}

func (r Result) IsFailed() bool {
	return r.Status == StatusFailed
}

func (r Result) IsIgnored() bool {
	return r.Status == StatusIgnored
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := struct {
		Status Status `json:"status"`
		Dump   string `json:"dump,omitempty"`
		Error  string `json:"error,omitempty"`
	}{
		Status: r.Status,
		Dump:   r.Dump,
	}

	if r.Err != nil {
		out.Error = r.Err.Error()
	}

	return json.Marshal(out)
}
