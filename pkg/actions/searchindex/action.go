// Package searchindex keeps an Algolia index in sync with content events.
package searchindex

const (
	Kind = "Algolia"

	// ObjectIDField is the document field Algolia uses as identifier.
	ObjectIDField = "objectID"
)

// Action is the search index configuration of a rule. IndexName and
// Document are format expressions.
type Action struct {
	AppID     string `json:"app_id"             validate:"required"`
	APIKey    string `json:"api_key"            validate:"required"`
	IndexName string `json:"index_name"         validate:"required"`
	Document  string `json:"document,omitempty"`
}

// Job is an upsert when Content is set and a delete otherwise.
type Job struct {
	AppID     string         `json:"app_id,omitempty"`
	APIKey    string         `json:"api_key,omitempty"`
	IndexName string         `json:"index_name,omitempty"`
	ContentID string         `json:"content_id,omitempty"`
	Content   map[string]any `json:"content,omitempty"`
}

func (j Job) IsDelete() bool {
	return j.Content == nil
}

func (j Job) key() IndexKey {
	return IndexKey{AppID: j.AppID, APIKey: j.APIKey, IndexName: j.IndexName}
}
