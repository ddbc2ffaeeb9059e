package formatter

import (
	"context"

	"github.com/dukex/ruleflow/pkg/events"
)

// ValueResolver resolves a placeholder path for an event. The first resolver
// that reports a match wins.
//
// Resolvers are consulted twice per placeholder: first with a nil value and
// the raw path segments (e.g. ["USER_NAME"]), then, when walking the event
// stopped early, with the value reached and the segments that were left.
type ValueResolver interface {
	Resolve(ctx context.Context, event events.EnrichedEvent, value any, path []string) (bool, *Future)
}

// URLGenerator builds links to the management UI and asset endpoints.
type URLGenerator interface {
	ContentUI(appID events.NamedID, schemaID events.NamedID, contentID string) string
	AssetContent(assetID string) string
}

// PredefinedPatterns resolves the fixed upper-case patterns such as
// USER_NAME or ASSET_FILENAME.
type PredefinedPatterns struct {
	urls     URLGenerator
	patterns map[string]func(event events.EnrichedEvent) (*string, bool)
}

func NewPredefinedPatterns(urls URLGenerator) *PredefinedPatterns {
	p := &PredefinedPatterns{urls: urls}

	p.patterns = map[string]func(event events.EnrichedEvent) (*string, bool){
		"APP_ID":             func(e events.EnrichedEvent) (*string, bool) { return text(e.Base().AppID.ID), true },
		"APP_NAME":           func(e events.EnrichedEvent) (*string, bool) { return text(e.Base().AppID.Name), true },
		"TIMESTAMP_DATE":     timestamp("2006-01-02"),
		"TIMESTAMP_DATETIME": timestamp("2006-01-02T15:04:05Z"),
		"USER_ID":            userID,
		"USER_NAME":          userName,
		"USER_EMAIL":         userEmail,
		"SCHEMA_ID":          p.content(func(c *events.ContentEvent) *string { return text(c.SchemaID.ID) }),
		"SCHEMA_NAME":        p.content(func(c *events.ContentEvent) *string { return text(c.SchemaID.Name) }),
		"CONTENT_ACTION":     p.content(func(c *events.ContentEvent) *string { return text(string(c.Type)) }),
		"CONTENT_URL":        p.content(p.contentURL),
		"ASSET_FILENAME":     p.asset(func(a *events.AssetEvent) *string { return text(a.FileName) }),
		"ASSET_FILETYPE":     p.asset(func(a *events.AssetEvent) *string { return text(a.MimeType) }),
		"ASSET_CONTENT_URL":  p.asset(p.assetURL),
	}

	return p
}

func (p *PredefinedPatterns) Resolve(_ context.Context, event events.EnrichedEvent, value any, path []string) (bool, *Future) {
	if value != nil || len(path) != 1 {
		return false, nil
	}

	pattern, ok := p.patterns[path[0]]
	if !ok {
		return false, nil
	}

	result, ok := pattern(event)
	if !ok {
		return false, nil
	}

	return true, Completed(result)
}

func (p *PredefinedPatterns) content(fn func(c *events.ContentEvent) *string) func(events.EnrichedEvent) (*string, bool) {
	return func(event events.EnrichedEvent) (*string, bool) {
		content, ok := event.(*events.ContentEvent)
		if !ok {
			return nil, false
		}

		return fn(content), true
	}
}

func (p *PredefinedPatterns) asset(fn func(a *events.AssetEvent) *string) func(events.EnrichedEvent) (*string, bool) {
	return func(event events.EnrichedEvent) (*string, bool) {
		asset, ok := event.(*events.AssetEvent)
		if !ok {
			return nil, false
		}

		return fn(asset), true
	}
}

func (p *PredefinedPatterns) contentURL(c *events.ContentEvent) *string {
	if p.urls == nil {
		return nil
	}

	return text(p.urls.ContentUI(c.AppID, c.SchemaID, c.ID))
}

func (p *PredefinedPatterns) assetURL(a *events.AssetEvent) *string {
	if p.urls == nil {
		return nil
	}

	return text(p.urls.AssetContent(a.ID))
}

func timestamp(layout string) func(events.EnrichedEvent) (*string, bool) {
	return func(event events.EnrichedEvent) (*string, bool) {
		ts := event.Base().Timestamp
		if ts.IsZero() {
			return nil, true
		}

		return text(ts.UTC().Format(layout)), true
	}
}

func userID(event events.EnrichedEvent) (*string, bool) {
	base := event.Base()
	if base.User != nil {
		return text(base.User.ID), true
	}

	return text(base.Actor.Identifier), true
}

func userName(event events.EnrichedEvent) (*string, bool) {
	base := event.Base()
	if base.User != nil {
		return text(base.User.DisplayName), true
	}

	if base.Actor.IsClient() {
		return text(base.Actor.String()), true
	}

	return nil, true
}

func userEmail(event events.EnrichedEvent) (*string, bool) {
	base := event.Base()
	if base.User != nil {
		return text(base.User.Email), true
	}

	return nil, true
}

// text treats empty strings as missing values.
func text(value string) *string {
	if value == "" {
		return nil
	}

	return &value
}
