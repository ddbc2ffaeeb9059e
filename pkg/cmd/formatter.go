package cmd

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/ruleflow/pkg/formatter"
	"github.com/dukex/ruleflow/pkg/protocol"
	"github.com/dukex/ruleflow/pkg/scripting"
	"github.com/dukex/ruleflow/pkg/template"
	"github.com/dukex/ruleflow/pkg/urls"
	"github.com/go-playground/validator/v10"
)

type Options struct {
	BaseURL        string
	ScriptTimeout  time.Duration
	WebhookTimeout time.Duration
	ClientPoolSize int

	// Contents enables placeholders that follow reference fields.
	Contents formatter.ContentLoader
}

// NewFormatter wires the script and template engines with the predefined
// patterns resolver and, when configured, the reference resolver.
func NewFormatter(opts Options) *formatter.Formatter {
	var generator formatter.URLGenerator
	if opts.BaseURL != "" {
		generator = urls.New(opts.BaseURL)
	}

	scriptOpts := []scripting.Option{}
	if opts.ScriptTimeout > 0 {
		scriptOpts = append(scriptOpts, scripting.WithTimeout(opts.ScriptTimeout))
	}

	resolvers := []formatter.ValueResolver{formatter.NewPredefinedPatterns(generator)}
	if opts.Contents != nil {
		resolvers = append(resolvers, formatter.NewReferences(opts.Contents))
	}

	return formatter.New(
		scripting.NewEngine(scriptOpts...),
		template.NewEngine(),
		resolvers...,
	)
}

// NewDependencies builds the collaborators shared by all action handlers.
func NewDependencies(f protocol.Formatter, opts Options, logger *slog.Logger) protocol.Dependencies {
	return protocol.Dependencies{
		Formatter:      f,
		HTTPClient:     &http.Client{},
		Validate:       validator.New(validator.WithRequiredStructEnabled()),
		Logger:         logger,
		WebhookTimeout: opts.WebhookTimeout,
		ClientPoolSize: opts.ClientPoolSize,
	}
}
