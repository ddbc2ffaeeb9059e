package formatter

import (
	"context"
	"fmt"

	"github.com/dukex/ruleflow/pkg/events"
)

const invariantLanguage = "iv"

// ContentLoader loads the data of a referenced content item. It returns nil
// data without error when the content does not exist.
type ContentLoader interface {
	LoadContent(ctx context.Context, appID events.NamedID, contentID string) (events.ContentData, error)
}

// References resolves paths through reference fields, e.g.
// ${CONTENT_DATA.city.iv.data.name} where city holds a list of content ids.
// The first referenced item is loaded and the rest of the path is read
// from its data.
type References struct {
	loader ContentLoader
}

func NewReferences(loader ContentLoader) *References {
	return &References{loader: loader}
}

func (r *References) Resolve(ctx context.Context, event events.EnrichedEvent, value any, path []string) (bool, *Future) {
	if len(path) == 0 || path[0] != "data" {
		return false, nil
	}

	ids, ok := value.([]any)
	if !ok {
		return false, nil
	}

	return true, Go(ctx, func(ctx context.Context) (*string, error) {
		if len(ids) == 0 {
			return nil, nil
		}

		contentID, ok := ids[0].(string)
		if !ok {
			return nil, nil
		}

		data, err := r.loader.LoadContent(ctx, event.Base().AppID, contentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load referenced content %s: %w", contentID, err)
		}

		return referencedValue(data, path[1:]), nil
	})
}

func referencedValue(data events.ContentData, path []string) *string {
	if data == nil || len(path) == 0 {
		return nil
	}

	field, ok := data[path[0]]
	if !ok {
		return nil
	}

	if len(path) == 1 {
		return stringify(languageValue(field))
	}

	value, rest := walk(map[string]any(field), path[1:])
	if len(rest) > 0 {
		return nil
	}

	return stringify(value)
}

// languageValue picks the invariant value of a field, or any language when
// the field is localized.
func languageValue(field map[string]any) any {
	if value, ok := field[invariantLanguage]; ok && value != nil {
		return value
	}

	for _, value := range field {
		return value
	}

	return nil
}
