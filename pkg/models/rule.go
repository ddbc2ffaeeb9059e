// Package models contains the rule definitions dispatched by the pipeline.
package models

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/dukex/ruleflow/pkg/events"
)

// Rule binds a trigger to one action of a registered kind.
type Rule struct {
	ID      string      `json:"id"      validate:"required"      yaml:"id"`
	Name    string      `json:"name"                             yaml:"name"`
	AppID   string      `json:"app_id"                           yaml:"app_id"`
	Enabled bool        `json:"enabled"                          yaml:"enabled"`
	Trigger RuleTrigger `json:"trigger"                          yaml:"trigger"`
	Action  RuleAction  `json:"action"  validate:"required"      yaml:"action"`
}

// RuleTrigger filters events. Empty lists match everything. Condition is a
// script that must evaluate to true for the rule to fire.
type RuleTrigger struct {
	Kinds     []events.Kind `json:"kinds,omitempty"     yaml:"kinds"`
	Schemas   []string      `json:"schemas,omitempty"   yaml:"schemas"`
	Types     []string      `json:"types,omitempty"     yaml:"types"`
	Condition string        `json:"condition,omitempty" yaml:"condition"`
}

type RuleAction struct {
	Kind   string         `json:"kind"   validate:"required" yaml:"kind"`
	Config map[string]any `json:"config"                     yaml:"config"`
}

// ConfigJSON returns the action configuration as handed to the handler.
func (a RuleAction) ConfigJSON() (json.RawMessage, error) {
	if a.Config == nil {
		return json.RawMessage("{}"), nil
	}

	return json.Marshal(a.Config)
}

// Matches reports whether event passes the kind, schema, type and app
// filters. The condition is evaluated by the caller.
func (r *Rule) Matches(event events.EnrichedEvent) bool {
	if !r.Enabled {
		return false
	}

	if r.AppID != "" && r.AppID != event.Base().AppID.ID && r.AppID != event.Base().AppID.Name {
		return false
	}

	if len(r.Trigger.Kinds) > 0 && !slices.Contains(r.Trigger.Kinds, event.Kind()) {
		return false
	}

	var schema, eventType string

	switch e := event.(type) {
	case *events.ContentEvent:
		schema, eventType = e.SchemaID.Name, string(e.Type)
	case *events.AssetEvent:
		eventType = string(e.Type)
	}

	if len(r.Trigger.Schemas) > 0 && !containsFold(r.Trigger.Schemas, schema) {
		return false
	}

	if len(r.Trigger.Types) > 0 && !containsFold(r.Trigger.Types, eventType) {
		return false
	}

	return true
}

func containsFold(values []string, value string) bool {
	return slices.ContainsFunc(values, func(candidate string) bool {
		return strings.EqualFold(candidate, value)
	})
}
