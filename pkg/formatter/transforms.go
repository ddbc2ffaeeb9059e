package formatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var ErrUnknownTransform = errors.New("unknown transform")

// Transform is a pure string function applied to a resolved placeholder.
type Transform func(value string) string

var transforms = map[string]Transform{
	"Upper":   strings.ToUpper,
	"Lower":   strings.ToLower,
	"Trim":    strings.TrimSpace,
	"Slugify": Slugify,
	"Escape":  Escape,
}

func lookupTransform(name string) (Transform, error) {
	fn, ok := transforms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, name)
	}

	return fn, nil
}

// Slugify lower-cases the value, strips diacritics and joins words with
// hyphens.
func Slugify(value string) string {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		value,
	)
	if err != nil {
		stripped = value
	}

	var sb strings.Builder

	pendingHyphen := false

	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && sb.Len() > 0 {
				sb.WriteByte('-')
			}

			pendingHyphen = false

			sb.WriteRune(r)

			continue
		}

		pendingHyphen = true
	}

	return sb.String()
}

// Escape makes the value safe to embed inside a JSON string literal.
func Escape(value string) string {
	var buf bytes.Buffer

	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)

	err := encoder.Encode(value)
	if err != nil {
		return value
	}

	encoded := strings.TrimSuffix(buf.String(), "\n")

	return encoded[1 : len(encoded)-1]
}
