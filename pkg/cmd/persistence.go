package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/ruleflow/pkg/persistence"
	"github.com/dukex/ruleflow/pkg/persistence/file"
)

var ErrUnsupportedPersistence = errors.New("unsupported persistence provider")

// NewPersistence opens the rule store at rulesURL. A plain path or a
// file:// URL selects the YAML file store.
func NewPersistence(rulesURL string) (persistence.Persistence, error) {
	provider := parsePersistenceProvider(rulesURL)

	switch provider {
	case "file":
		return file.NewPersistence(rulesURL), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPersistence, provider)
	}
}

func parsePersistenceProvider(rulesURL string) string {
	provider, _, found := strings.Cut(rulesURL, "://")
	if !found {
		return "file"
	}

	return provider
}
