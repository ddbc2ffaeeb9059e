// Package events defines the enriched domain events that rule actions are dispatched for.
package events

import (
	"strings"
	"time"
	"unicode"
)

type Kind string

const (
	KindContent Kind = "content"
	KindAsset   Kind = "asset"
)

// EnrichedEvent is a domain event augmented with denormalized fields so
// that formatting never needs to query upstream state.
type EnrichedEvent interface {
	// Base returns the fields every enriched event carries.
	Base() *BaseEvent

	// Kind tags the concrete event variant.
	Kind() Kind

	// EventName is the display name of the event, e.g. "BlogPostCreated".
	EventName() string
}

type BaseEvent struct {
	Name      string    `json:"name,omitempty"`
	Actor     RefToken  `json:"actor"`
	AppID     NamedID   `json:"app_id"`
	Timestamp time.Time `json:"timestamp"`
	Version   int64     `json:"version"`

	// User is the resolved actor, when the actor is a known user.
	User *User `json:"-"`
}

func (e *BaseEvent) Base() *BaseEvent {
	return e
}

// User is the denormalized identity of the actor that caused an event.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// NamedID is an identifier paired with its human readable name.
type NamedID struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (n NamedID) String() string {
	return n.ID + "," + n.Name
}

func pascalCase(value string) string {
	var sb strings.Builder

	upperNext := true

	for _, r := range value {
		if r == '-' || r == '_' || r == ' ' || r == '.' {
			upperNext = true

			continue
		}

		if upperNext {
			sb.WriteRune(unicode.ToUpper(r))
			upperNext = false
		} else {
			sb.WriteRune(r)
		}
	}

	return sb.String()
}
