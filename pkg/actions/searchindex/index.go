package searchindex

import (
	"context"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/opt"
	"github.com/algolia/algoliasearch-client-go/v3/algolia/search"
)

// IndexKey identifies an index client. Every field takes part in the
// client's identity, so two rules sharing all three share a client.
type IndexKey struct {
	AppID     string
	APIKey    string
	IndexName string
}

// Index is the part of the search SDK the handler uses.
type Index interface {
	PartialUpdateObject(ctx context.Context, object map[string]any) (any, error)
	DeleteObject(ctx context.Context, objectID string) (any, error)
}

// NewAlgoliaIndex creates an SDK backed index. It is the default client
// factory of the handler.
func NewAlgoliaIndex(_ context.Context, key IndexKey) (Index, error) {
	client := search.NewClient(key.AppID, key.APIKey)

	return &algoliaIndex{index: client.InitIndex(key.IndexName)}, nil
}

type algoliaIndex struct {
	index *search.Index
}

func (a *algoliaIndex) PartialUpdateObject(ctx context.Context, object map[string]any) (any, error) {
	return a.index.PartialUpdateObject(object, ctx, opt.CreateIfNotExists(true))
}

func (a *algoliaIndex) DeleteObject(ctx context.Context, objectID string) (any, error) {
	return a.index.DeleteObject(objectID, ctx)
}
