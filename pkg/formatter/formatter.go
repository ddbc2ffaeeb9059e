// Package formatter renders enriched events into action payloads. It
// resolves ${PATH | Transform ? fallback} placeholders, Script(...) blocks
// and full-document Template(...) expressions.
package formatter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/ruleflow/pkg/events"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrResolution is returned when a script or template fails to evaluate.
	ErrResolution = errors.New("failed to resolve expression")
	// ErrEngineMissing is returned when an expression needs an engine that was not configured.
	ErrEngineMissing = errors.New("engine not configured")
)

// nullValue is written for placeholders that resolve to nothing and have no fallback.
const nullValue = "null"

// ScriptEngine evaluates a script against variables and returns its result as string.
type ScriptEngine interface {
	Evaluate(ctx context.Context, source string, vars map[string]any) (string, error)
}

// TemplateEngine renders a whole template document against variables.
type TemplateEngine interface {
	Render(ctx context.Context, source string, vars map[string]any) (string, error)
}

type Formatter struct {
	resolvers []ValueResolver
	scripts   ScriptEngine
	templates TemplateEngine
}

// New creates a Formatter. Resolvers are consulted in the given order.
func New(scripts ScriptEngine, templates TemplateEngine, resolvers ...ValueResolver) *Formatter {
	return &Formatter{
		resolvers: resolvers,
		scripts:   scripts,
		templates: templates,
	}
}

// Format evaluates expression against event. An expression that is entirely
// Script(...) or Template(...) is handed to the matching engine; otherwise
// every ${...} placeholder is replaced in place. Placeholders are resolved
// concurrently; a cancelled ctx discards the partial result.
func (f *Formatter) Format(ctx context.Context, expression string, event events.EnrichedEvent) (string, error) {
	if source, ok := unwrap(expression, scriptPrefix); ok {
		return f.evaluateScript(ctx, source, event)
	}

	if source, ok := unwrap(expression, templatePrefix); ok {
		return f.Render(ctx, source, event)
	}

	segments, err := parse(expression)
	if err != nil {
		return "", err
	}

	if !hasPlaceholders(segments) {
		return expression, nil
	}

	eventMap, err := events.ToMap(event)
	if err != nil {
		return "", err
	}

	results := make([]string, len(segments))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, seg := range segments {
		if seg.kind == segmentLiteral {
			results[i] = seg.text

			continue
		}

		group.Go(func() error {
			value, err := f.evaluateSegment(groupCtx, seg, event, eventMap)
			if err != nil {
				return err
			}

			results[i] = value

			return nil
		})
	}

	err = group.Wait()
	if err != nil {
		return "", err
	}

	err = ctx.Err()
	if err != nil {
		return "", err
	}

	return strings.Join(results, ""), nil
}

// Render renders a full template document with the event exposed as "event".
func (f *Formatter) Render(ctx context.Context, source string, event events.EnrichedEvent) (string, error) {
	if f.templates == nil {
		return "", fmt.Errorf("%w: template", ErrEngineMissing)
	}

	vars, err := scriptVars(event)
	if err != nil {
		return "", err
	}

	result, err := f.templates.Render(ctx, source, vars)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolution, err)
	}

	return result, nil
}

// ToPayload returns the event as JSON object.
func (f *Formatter) ToPayload(event events.EnrichedEvent) (map[string]any, error) {
	return events.ToMap(event)
}

// ToEnvelope returns the indented JSON envelope {type, payload, timestamp}
// sent to generic receivers such as webhooks.
func (f *Formatter) ToEnvelope(event events.EnrichedEvent) (string, error) {
	payload, err := f.ToPayload(event)
	if err != nil {
		return "", err
	}

	envelope := struct {
		Type      string         `json:"type"`
		Payload   map[string]any `json:"payload"`
		Timestamp string         `json:"timestamp"`
	}{
		Type:      event.EventName(),
		Payload:   payload,
		Timestamp: event.Base().Timestamp.UTC().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return string(data), nil
}

func (f *Formatter) evaluateSegment(ctx context.Context, seg segment, event events.EnrichedEvent, eventMap map[string]any) (string, error) {
	if seg.kind == segmentScript {
		return f.evaluateScript(ctx, seg.text, event)
	}

	value, err := f.resolve(ctx, seg.text, event, eventMap)
	if err != nil {
		return "", err
	}

	if value == nil || *value == "" || *value == nullValue {
		if seg.hasFallback {
			return seg.fallback, nil
		}

		if value == nil {
			return nullValue, nil
		}

		return *value, nil
	}

	result := *value
	for _, transform := range seg.transforms {
		result = transform(result)
	}

	return result, nil
}

func (f *Formatter) evaluateScript(ctx context.Context, source string, event events.EnrichedEvent) (string, error) {
	if f.scripts == nil {
		return "", fmt.Errorf("%w: script", ErrEngineMissing)
	}

	vars, err := scriptVars(event)
	if err != nil {
		return "", err
	}

	result, err := f.scripts.Evaluate(ctx, source, vars)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolution, err)
	}

	return result, nil
}

// resolve returns nil when the path is unknown or points at nothing.
func (f *Formatter) resolve(ctx context.Context, path string, event events.EnrichedEvent, eventMap map[string]any) (*string, error) {
	segments := strings.Split(path, ".")

	matched, value, err := f.tryResolvers(ctx, event, nil, segments)
	if matched || err != nil {
		return value, err
	}

	eventPath, ok := toEventPath(segments)
	if !ok {
		return nil, nil
	}

	current, remaining := walk(eventMap, eventPath)
	if len(remaining) == 0 {
		return stringify(current), nil
	}

	if current == nil {
		return nil, nil
	}

	_, value, err = f.tryResolvers(ctx, event, current, remaining)

	return value, err
}

func (f *Formatter) tryResolvers(ctx context.Context, event events.EnrichedEvent, value any, path []string) (bool, *string, error) {
	for _, resolver := range f.resolvers {
		matched, future := resolver.Resolve(ctx, event, value, path)
		if !matched {
			continue
		}

		if future == nil {
			return true, nil, nil
		}

		result, err := future.Await(ctx)

		return true, result, err
	}

	return false, nil, nil
}

// toEventPath maps CONTENT_DATA.x.y to data.x.y and EVENT_X.y to x.y.
func toEventPath(segments []string) ([]string, bool) {
	first := segments[0]

	switch {
	case first == "CONTENT_DATA":
		return append([]string{"data"}, segments[1:]...), true
	case strings.HasPrefix(first, "EVENT_") && len(first) > len("EVENT_"):
		return append([]string{strings.TrimPrefix(first, "EVENT_")}, segments[1:]...), true
	default:
		return nil, false
	}
}

// walk follows path through maps and arrays. It stops at the first segment
// it cannot follow and returns the value reached and the remaining path.
func walk(root any, path []string) (any, []string) {
	current := root

	for i, key := range path {
		switch node := current.(type) {
		case map[string]any:
			next, ok := lookupKey(node, key)
			if !ok {
				return nil, nil
			}

			current = next
		case []any:
			index, err := strconv.Atoi(key)
			if err != nil {
				return current, path[i:]
			}

			if index < 0 || index >= len(node) {
				return nil, nil
			}

			current = node[index]
		default:
			return current, path[i:]
		}
	}

	return current, nil
}

func lookupKey(node map[string]any, key string) (any, bool) {
	if value, ok := node[key]; ok {
		return value, true
	}

	normalized := normalizeKey(key)

	for k, value := range node {
		if normalizeKey(k) == normalized {
			return value, true
		}
	}

	return nil, false
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "_", ""))
}

func stringify(value any) *string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return &v
	case bool:
		return text(strconv.FormatBool(v))
	case float64:
		return text(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}

		return text(string(data))
	}
}

func hasPlaceholders(segments []segment) bool {
	for _, seg := range segments {
		if seg.kind != segmentLiteral {
			return true
		}
	}

	return false
}

func scriptVars(event events.EnrichedEvent) (map[string]any, error) {
	eventMap, err := events.ToMap(event)
	if err != nil {
		return nil, err
	}

	return map[string]any{"event": eventMap}, nil
}
