// Package contentstore keeps the latest data of every content item seen on
// the event stream, so that placeholders can follow reference fields.
package contentstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/ruleflow/pkg/events"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "ruleflow:content"
	DefaultTTL    = 7 * 24 * time.Hour
)

type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store. A ttl of 0 keeps snapshots forever.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(appID string, contentID string) string {
	return s.prefix + ":" + appID + ":" + contentID
}

// LoadContent returns nil data when the content is unknown.
func (s *Store) LoadContent(ctx context.Context, appID events.NamedID, contentID string) (events.ContentData, error) {
	payload, err := s.client.Get(ctx, s.key(appID.ID, contentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to load content %s: %w", contentID, err)
	}

	var data events.ContentData

	err = json.Unmarshal(payload, &data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode content %s: %w", contentID, err)
	}

	return data, nil
}

// Observe records the data of content events. Deleted content is removed;
// other event kinds are ignored.
func (s *Store) Observe(ctx context.Context, event events.EnrichedEvent) error {
	content, ok := event.(*events.ContentEvent)
	if !ok || content.ID == "" {
		return nil
	}

	key := s.key(content.AppID.ID, content.ID)

	if content.Type == events.ContentDeleted {
		return s.client.Del(ctx, key).Err()
	}

	if content.Data == nil {
		return nil
	}

	payload, err := json.Marshal(content.Data)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, key, payload, s.ttl).Err()
}
