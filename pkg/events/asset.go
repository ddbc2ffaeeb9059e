package events

type AssetEventType string

const (
	AssetCreated   AssetEventType = "Created"
	AssetUpdated   AssetEventType = "Updated"
	AssetAnnotated AssetEventType = "Annotated"
	AssetDeleted   AssetEventType = "Deleted"
)

type AssetEvent struct {
	BaseEvent

	Type        AssetEventType `json:"type"`
	ID          string         `json:"id"`
	FileName    string         `json:"file_name"`
	FileVersion int64          `json:"file_version"`
	FileSize    int64          `json:"file_size"`
	MimeType    string         `json:"mime_type"`
	IsImage     bool           `json:"is_image"`
	PixelWidth  *int           `json:"pixel_width,omitempty"`
	PixelHeight *int           `json:"pixel_height,omitempty"`
}

func (e *AssetEvent) Kind() Kind {
	return KindAsset
}

func (e *AssetEvent) EventName() string {
	if e.Name != "" {
		return e.Name
	}

	return "Asset" + string(e.Type)
}
