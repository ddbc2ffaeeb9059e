package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidRefToken = errors.New("invalid ref token")

const (
	RefTokenSubject = "subject"
	RefTokenClient  = "client"
)

// RefToken identifies the actor of an event as "type:identifier".
type RefToken struct {
	Type       string
	Identifier string
}

func ParseRefToken(value string) (RefToken, error) {
	tokenType, identifier, found := strings.Cut(value, ":")
	if !found || tokenType == "" || identifier == "" {
		return RefToken{}, fmt.Errorf("%w: %q", ErrInvalidRefToken, value)
	}

	return RefToken{Type: strings.ToLower(tokenType), Identifier: identifier}, nil
}

func (t RefToken) IsClient() bool {
	return t.Type == RefTokenClient
}

func (t RefToken) String() string {
	if t.Type == "" && t.Identifier == "" {
		return ""
	}

	return t.Type + ":" + t.Identifier
}

func (t RefToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *RefToken) UnmarshalJSON(data []byte) error {
	var value string

	err := json.Unmarshal(data, &value)
	if err != nil {
		return err
	}

	if value == "" {
		*t = RefToken{}

		return nil
	}

	parsed, err := ParseRefToken(value)
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}
