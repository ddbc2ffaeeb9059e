package events

import "time"

type ContentEventType string

const (
	ContentCreated       ContentEventType = "Created"
	ContentUpdated       ContentEventType = "Updated"
	ContentDeleted       ContentEventType = "Deleted"
	ContentPublished     ContentEventType = "Published"
	ContentUnpublished   ContentEventType = "Unpublished"
	ContentStatusChanged ContentEventType = "StatusChanged"
)

// ContentData maps field names to their per-language values, e.g.
// {"city": {"iv": "Berlin"}}.
type ContentData map[string]map[string]any

type ContentEvent struct {
	BaseEvent

	Type         ContentEventType `json:"type"`
	ID           string           `json:"id"`
	SchemaID     NamedID          `json:"schema_id"`
	Status       string           `json:"status,omitempty"`
	Data         ContentData      `json:"data,omitempty"`
	DataOld      ContentData      `json:"data_old,omitempty"`
	Created      time.Time        `json:"created"`
	LastModified time.Time        `json:"last_modified"`
}

func (e *ContentEvent) Kind() Kind {
	return KindContent
}

func (e *ContentEvent) EventName() string {
	if e.Name != "" {
		return e.Name
	}

	return pascalCase(e.SchemaID.Name) + string(e.Type)
}

// IsRemoval reports whether the content left the published set.
func (e *ContentEvent) IsRemoval() bool {
	return e.Type == ContentDeleted || e.Type == ContentUnpublished
}
