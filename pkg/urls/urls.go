// Package urls builds links to the management UI and to asset content.
package urls

import (
	"net/url"
	"strings"

	"github.com/dukex/ruleflow/pkg/events"
)

type Generator struct {
	base string
}

// New creates a Generator rooted at baseURL, e.g. https://cloud.example.com.
func New(baseURL string) *Generator {
	return &Generator{base: strings.TrimRight(baseURL, "/")}
}

func (g *Generator) ContentUI(appID events.NamedID, schemaID events.NamedID, contentID string) string {
	return g.base + "/app/" + url.PathEscape(appID.Name) +
		"/content/" + url.PathEscape(schemaID.Name) +
		"/" + url.PathEscape(contentID) + "/history"
}

func (g *Generator) AssetContent(assetID string) string {
	return g.base + "/api/assets/" + url.PathEscape(assetID)
}
