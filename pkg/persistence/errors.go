package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrRuleNotFound indicates a rule was not found by the given identifier.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrDuplicateRule indicates two rules share an identifier.
	ErrDuplicateRule = errors.New("duplicate rule id")
)

// RuleError wraps rule-related errors with additional context.
type RuleError struct {
	Op     string // Operation being performed (e.g., "RuleByID", "Load")
	RuleID string
	Err    error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s operation failed for rule %s: %v", e.Op, e.RuleID, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

func NewRuleError(op, ruleID string, err error) *RuleError {
	return &RuleError{
		Op:     op,
		RuleID: ruleID,
		Err:    err,
	}
}

// IsRuleNotFound checks if an error indicates a rule was not found.
func IsRuleNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}
