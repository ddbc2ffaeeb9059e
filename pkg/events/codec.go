package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownEventKind = errors.New("unknown event kind")

type envelope struct {
	Kind  Kind            `json:"kind"`
	Event json.RawMessage `json:"event"`
}

// Marshal encodes an enriched event together with its kind so that it can
// be decoded again with Unmarshal.
func Marshal(event EnrichedEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return json.Marshal(envelope{Kind: event.Kind(), Event: payload})
}

func Unmarshal(data []byte) (EnrichedEvent, error) {
	var env envelope

	err := json.Unmarshal(data, &env)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	var event EnrichedEvent

	switch env.Kind {
	case KindContent:
		event = &ContentEvent{}
	case KindAsset:
		event = &AssetEvent{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventKind, env.Kind)
	}

	err = json.Unmarshal(env.Event, event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event: %w", env.Kind, err)
	}

	return event, nil
}

// ToMap returns the JSON object representation of the event, the shape that
// scripts, templates and event paths see.
func ToMap(event EnrichedEvent) (map[string]any, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	var result map[string]any

	err = json.Unmarshal(payload, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return result, nil
}
