// Package template renders full documents, e.g. webhook payload bodies,
// with text/template and the event exposed as .event.
package template

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Engine implements whole-document rendering for the formatter.
type Engine struct {
	funcs template.FuncMap
}

func NewEngine() *Engine {
	return &Engine{funcs: defaultFuncs()}
}

// Render parses and executes source against vars. Missing keys render as
// empty values.
func (e *Engine) Render(ctx context.Context, source string, vars map[string]any) (string, error) {
	err := ctx.Err()
	if err != nil {
		return "", err
	}

	return render(source, vars, e.funcs)
}

func render(templateStr string, data any, funcs template.FuncMap) (string, error) {
	tmpl, err := template.
		New("document").
		Option("missingkey=zero").
		Funcs(funcs).
		Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return buf.String(), nil
}

func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		"now": func() string {
			return time.Now().UTC().Format(time.RFC3339)
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"trim":  strings.TrimSpace,
		"json": func(value any) (string, error) {
			data, err := json.Marshal(value)
			if err != nil {
				return "", err
			}

			return string(data), nil
		},
		"default": func(fallback any, value any) any {
			if value == nil || value == "" {
				return fallback
			}

			return value
		},
	}
}
