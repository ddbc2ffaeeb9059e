package formatter_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/ruleflow/pkg/events"
	"github.com/dukex/ruleflow/pkg/formatter"
	"github.com/dukex/ruleflow/pkg/scripting"
	"github.com/dukex/ruleflow/pkg/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	appID    = events.NamedID{ID: "8a3f", Name: "my-app"}
	schemaID = events.NamedID{ID: "5c1e", Name: "my-schema"}
)

type fakeURLs struct{}

func (fakeURLs) ContentUI(_ events.NamedID, _ events.NamedID, _ string) string {
	return "content-url"
}

func (fakeURLs) AssetContent(_ string) string {
	return "asset-content-url"
}

// slowReferences matches array values under "data" and answers late.
type slowReferences struct {
	calls atomic.Int32
}

func (r *slowReferences) Resolve(ctx context.Context, _ events.EnrichedEvent, value any, path []string) (bool, *formatter.Future) {
	if path[0] != "data" {
		return false, nil
	}

	if _, ok := value.([]any); !ok {
		return false, nil
	}

	r.calls.Add(1)

	return true, formatter.Go(ctx, func(ctx context.Context) (*string, error) {
		select {
		case <-time.After(5 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		result := "Reference"

		return &result, nil
	})
}

func newFormatter(resolvers ...formatter.ValueResolver) *formatter.Formatter {
	all := append([]formatter.ValueResolver{formatter.NewPredefinedPatterns(fakeURLs{})}, resolvers...)

	return formatter.New(scripting.NewEngine(), template.NewEngine(), all...)
}

func assetEvent(fileName string) *events.AssetEvent {
	return &events.AssetEvent{
		BaseEvent: events.BaseEvent{AppID: appID},
		Type:      events.AssetCreated,
		ID:        "asset-1",
		FileName:  fileName,
	}
}

func contentEvent(user *events.User) *events.ContentEvent {
	return &events.ContentEvent{
		BaseEvent: events.BaseEvent{
			AppID:     appID,
			Actor:     events.RefToken{Type: "subject", Identifier: "user123"},
			Timestamp: time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC),
			User:      user,
		},
		Type:     events.ContentCreated,
		ID:       "content-1",
		SchemaID: schemaID,
	}
}

func TestFormat_LiteralIsUnchanged(t *testing.T) {
	t.Parallel()

	sut := newFormatter()

	for _, expression := range []string{"", "plain text", "{'Key':'Value'}", "costs $5", "open ${ without end"} {
		result, err := sut.Format(context.Background(), expression, assetEvent("file"))
		require.NoError(t, err)
		assert.Equal(t, expression, result)
	}
}

func TestFormat_Transforms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expression string
		fileName   string
		expected   string
	}{
		{"Found in ${ASSET_FILENAME | Escape | Upper}.docx", `Donald"Duck`, `Found in DONALD\"DUCK.docx`},
		{"Found in ${ASSET_FILENAME | Escape}.docx", `Donald"Duck`, `Found in Donald\"Duck.docx`},
		{"Found in ${ASSET_FILENAME | Upper}.docx", "Donald Duck", "Found in DONALD DUCK.docx"},
		{"Found in ${ASSET_FILENAME| Upper  }.docx", "Donald Duck", "Found in DONALD DUCK.docx"},
		{"Found in ${ASSET_FILENAME|Upper }.docx", "Donald Duck", "Found in DONALD DUCK.docx"},
		{"Found in ${ASSET_FILENAME | Lower}.docx", "Donald Duck", "Found in donald duck.docx"},
		{"Found in ${ASSET_FILENAME | Slugify}.docx", "Donald Duck", "Found in donald-duck.docx"},
		{"Found in ${ASSET_FILENAME | Trim}.docx", "Donald Duck ", "Found in Donald Duck.docx"},
		{"{'Key':'${ASSET_FILENAME | Upper}'}", "Donald Duck", "{'Key':'DONALD DUCK'}"},
		{"{'Key':'${ASSET_FILENAME}'}", "Donald Duck", "{'Key':'Donald Duck'}"},
	}

	sut := newFormatter()

	for _, testCase := range tests {
		t.Run(testCase.expression, func(t *testing.T) {
			t.Parallel()

			result, err := sut.Format(context.Background(), testCase.expression, assetEvent(testCase.fileName))
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, result)
		})
	}
}

func TestFormat_TransformsWithUserName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expression string
		name       string
		expected   string
	}{
		{"From ${USER_NAME | Escape | Upper}", `Donald"Duck`, `From DONALD\"DUCK`},
		{"From ${USER_NAME | Upper}", "Donald Duck", "From DONALD DUCK"},
		{"From ${USER_NAME | Slugify}", "Donald Duck", "From donald-duck"},
	}

	sut := newFormatter()

	for _, testCase := range tests {
		t.Run(testCase.expression, func(t *testing.T) {
			t.Parallel()

			event := contentEvent(&events.User{ID: "user123", DisplayName: testCase.name})

			result, err := sut.Format(context.Background(), testCase.expression, event)
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, result)
		})
	}
}

func TestFormat_UnknownTransformFails(t *testing.T) {
	t.Parallel()

	_, err := newFormatter().Format(context.Background(), "${ASSET_FILENAME | Reverse}", assetEvent("x"))
	require.ErrorIs(t, err, formatter.ErrUnknownTransform)
}

func TestFormat_Fallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		expression string
		fileName   string
		expected   string
	}{
		{"invalid path", "${EVENT_INVALID ? file}", "", "file"},
		{"null value", "${ASSET_FILENAME ? file}", "", "file"},
		{"value present", "${ASSET_FILENAME ? file}", "report.pdf", "report.pdf"},
		{"transform before fallback", "${ASSET_FILENAME | Upper ? none}", "a.txt", "A.TXT"},
		{"no fallback writes null", "${EVENT_INVALID}", "", "null"},
	}

	sut := newFormatter()

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result, err := sut.Format(context.Background(), testCase.expression, assetEvent(testCase.fileName))
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, result)
		})
	}
}

func TestFormat_PredefinedPatterns(t *testing.T) {
	t.Parallel()

	event := contentEvent(&events.User{ID: "user123", Email: "me@email.com", DisplayName: "me"})
	sut := newFormatter()

	tests := map[string]string{
		"${APP_ID}":             "8a3f",
		"${APP_NAME}":           "my-app",
		"${SCHEMA_ID}":          "5c1e",
		"${SCHEMA_NAME}":        "my-schema",
		"${CONTENT_ACTION}":     "Created",
		"${CONTENT_URL}":        "content-url",
		"${USER_ID}":            "user123",
		"${USER_EMAIL}":         "me@email.com",
		"${USER_NAME}":          "me",
		"${TIMESTAMP_DATE}":     "2024-03-09",
		"${TIMESTAMP_DATETIME}": "2024-03-09T14:30:00Z",
	}

	for expression, expected := range tests {
		result, err := sut.Format(context.Background(), expression, event)
		require.NoError(t, err)
		assert.Equal(t, expected, result, expression)
	}
}

func TestFormat_ClientActorAsUserName(t *testing.T) {
	t.Parallel()

	event := contentEvent(nil)
	event.Actor = events.RefToken{Type: "client", Identifier: "android"}

	result, err := newFormatter().Format(context.Background(), "${USER_NAME}", event)
	require.NoError(t, err)
	assert.Equal(t, "client:android", result)
}

func TestFormat_AssetURL(t *testing.T) {
	t.Parallel()

	result, err := newFormatter().Format(context.Background(), "${ASSET_CONTENT_URL}", assetEvent("x"))
	require.NoError(t, err)
	assert.Equal(t, "asset-content-url", result)
}

func TestFormat_EventPaths(t *testing.T) {
	t.Parallel()

	event := contentEvent(nil)
	event.Data = events.ContentData{
		"city":  {"iv": "Berlin"},
		"count": {"iv": 42.0},
		"tags":  {"iv": []any{"a", "b"}},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded events.ContentEvent

	require.NoError(t, json.Unmarshal(data, &decoded))

	tests := map[string]string{
		"${CONTENT_DATA.city.iv}":   "Berlin",
		"${CONTENT_DATA.count.iv}":  "42",
		"${CONTENT_DATA.tags.iv.1}": "b",
		"${CONTENT_DATA.tags.iv}":   `["a","b"]`,
		"${EVENT_TYPE}":             "Created",
		"${EVENT_SCHEMA_ID.name}":   "my-schema",
		"${EVENT_ACTOR}":            "subject:user123",
	}

	sut := newFormatter()

	for expression, expected := range tests {
		result, err := sut.Format(context.Background(), expression, &decoded)
		require.NoError(t, err)
		assert.Equal(t, expected, result, expression)
	}
}

func TestFormat_ResolvesReferenceAsynchronously(t *testing.T) {
	t.Parallel()

	references := &slowReferences{}
	sut := newFormatter(references)

	event := contentEvent(nil)
	event.Data = events.ContentData{
		"city": {"iv": []any{}},
	}

	result, err := sut.Format(context.Background(), "${CONTENT_DATA.city.iv.data.name}", event)
	require.NoError(t, err)
	assert.Equal(t, "Reference", result)
}

func TestFormat_ConcurrentPlaceholdersKeepOrder(t *testing.T) {
	t.Parallel()

	references := &slowReferences{}
	sut := newFormatter(references)

	event := contentEvent(&events.User{DisplayName: "Jane"})
	event.Data = events.ContentData{
		"city":    {"iv": []any{"c1"}},
		"country": {"iv": []any{"c2"}},
	}

	result, err := sut.Format(context.Background(),
		"${USER_NAME}: ${CONTENT_DATA.city.iv.data.name} / ${SCHEMA_NAME} / ${CONTENT_DATA.country.iv.data.name}!",
		event)
	require.NoError(t, err)
	assert.Equal(t, "Jane: Reference / my-schema / Reference!", result)
	assert.Equal(t, int32(2), references.calls.Load())
}

func TestFormat_CancelledDiscardsOutput(t *testing.T) {
	t.Parallel()

	sut := newFormatter(&slowReferences{})

	event := contentEvent(nil)
	event.Data = events.ContentData{"city": {"iv": []any{"c1"}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := sut.Format(ctx, "before ${CONTENT_DATA.city.iv.data.name} after", event)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result)
}

func TestFormat_Scripts(t *testing.T) {
	t.Parallel()

	created := contentEvent(nil)

	android := contentEvent(nil)
	android.Actor = events.RefToken{Type: "client", Identifier: "android"}

	quoted := contentEvent(nil)
	quoted.Actor = events.RefToken{Type: "client", Identifier: `mobile"android`}

	tests := []struct {
		name       string
		expression string
		event      events.EnrichedEvent
		expected   string
	}{
		{"json", "Script(JSON.stringify({ actor: event.actor.toString() }))", android, `{"actor":"client:android"}`},
		{"json with special characters", "Script(JSON.stringify({ actor: event.actor.toString() }))", quoted, `{"actor":"client:mobile\"android"}`},
		{"leading whitespace", " Script(`${event.type}`)", created, "Created"},
		{"trailing whitespace", "Script(`${event.type}`) ", created, "Created"},
		{"inline script placeholder", "Type: ${Script(event.type.toLowerCase())}!", created, "Type: created!"},
	}

	sut := newFormatter()

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result, err := sut.Format(context.Background(), testCase.expression, testCase.event)
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, result)
		})
	}
}

func TestFormat_ScriptOutputIsValidJSON(t *testing.T) {
	t.Parallel()

	event := contentEvent(nil)
	event.Actor = events.RefToken{Type: "client", Identifier: `mobile"android`}

	result, err := newFormatter().Format(context.Background(), "Script(JSON.stringify({ actor: event.actor.toString() }))", event)
	require.NoError(t, err)

	var decoded map[string]string

	require.NoError(t, json.Unmarshal([]byte(result), &decoded))
	assert.Equal(t, `client:mobile"android`, decoded["actor"])
}

func TestFormat_ScriptErrorPropagates(t *testing.T) {
	t.Parallel()

	_, err := newFormatter().Format(context.Background(), "Script(throw new Error('x'))", contentEvent(nil))
	require.ErrorIs(t, err, formatter.ErrResolution)
	require.ErrorIs(t, err, scripting.ErrRuntime)
}

func TestFormat_MissingEngines(t *testing.T) {
	t.Parallel()

	sut := formatter.New(nil, nil)

	_, err := sut.Format(context.Background(), "Script(1)", contentEvent(nil))
	require.ErrorIs(t, err, formatter.ErrEngineMissing)

	_, err = sut.Render(context.Background(), "{{ .event.type }}", contentEvent(nil))
	require.ErrorIs(t, err, formatter.ErrEngineMissing)
}

func TestRender_Template(t *testing.T) {
	t.Parallel()

	sut := newFormatter()

	result, err := sut.Render(context.Background(), `{"type": "{{ .event.type }}", "id": "{{ .event.id }}"}`, contentEvent(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "Created", "id": "content-1"}`, result)

	result, err = sut.Format(context.Background(), "Template({{ .event.schema_id.name }})", contentEvent(nil))
	require.NoError(t, err)
	assert.Equal(t, "my-schema", result)
}

func TestToEnvelope(t *testing.T) {
	t.Parallel()

	event := contentEvent(nil)
	event.BaseEvent.Name = "MyEventName"

	result, err := newFormatter().ToEnvelope(event)
	require.NoError(t, err)
	assert.Contains(t, result, "MyEventName")

	var envelope struct {
		Type      string         `json:"type"`
		Payload   map[string]any `json:"payload"`
		Timestamp string         `json:"timestamp"`
	}

	require.NoError(t, json.Unmarshal([]byte(result), &envelope))
	assert.Equal(t, "MyEventName", envelope.Type)
	assert.Equal(t, "content-1", envelope.Payload["id"])
	assert.Equal(t, "2024-03-09T14:30:00Z", envelope.Timestamp)
}

func TestToPayload(t *testing.T) {
	t.Parallel()

	result, err := newFormatter().ToPayload(contentEvent(nil))
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, "Created", result["type"])
}
