// Package clientpool caches expensive SDK clients by connection identity.
package clientpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCapacity bounds a pool when no capacity is given.
const DefaultCapacity = 100

var ErrFactoryPanic = errors.New("client factory panicked")

// Factory constructs the client for key.
type Factory[K comparable, C any] func(ctx context.Context, key K) (C, error)

type entry[C any] struct {
	client   C
	lastUsed atomic.Int64
}

// Pool returns one client per key. K must contain every field that affects
// the identity or authentication of the client.
//
// Cached clients are read under a shared lock. Constructions are grouped
// per key, so concurrent callers for an unseen key share one factory call.
// When the pool is full the least recently used client is evicted.
type Pool[K comparable, C any] struct {
	factory  Factory[K, C]
	capacity int
	onEvict  func(key K, client C)
	now      func() time.Time

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[K]*entry[C]
}

type Option[K comparable, C any] func(*Pool[K, C])

// WithCapacity bounds the number of cached clients. Zero or less means unbounded.
func WithCapacity[K comparable, C any](capacity int) Option[K, C] {
	return func(p *Pool[K, C]) {
		p.capacity = capacity
	}
}

// WithOnEvict registers a callback that receives evicted clients, e.g. to close them.
func WithOnEvict[K comparable, C any](onEvict func(key K, client C)) Option[K, C] {
	return func(p *Pool[K, C]) {
		p.onEvict = onEvict
	}
}

func New[K comparable, C any](factory Factory[K, C], opts ...Option[K, C]) *Pool[K, C] {
	pool := &Pool[K, C]{
		factory:  factory,
		capacity: DefaultCapacity,
		now:      time.Now,
		entries:  make(map[K]*entry[C]),
	}

	for _, opt := range opts {
		opt(pool)
	}

	return pool
}

// Get returns the cached client or constructs it. Failed constructions
// are not cached. Waiting for a construction started by another caller ends
// when ctx is done; the construction itself keeps running for the others.
func (p *Pool[K, C]) Get(ctx context.Context, key K) (C, error) {
	if client, ok := p.cached(key); ok {
		return client, nil
	}

	result := p.group.DoChan(groupKey(key), func() (any, error) {
		return p.construct(context.WithoutCancel(ctx), key)
	})

	select {
	case res := <-result:
		if res.Err != nil {
			var zero C

			return zero, res.Err
		}

		client, _ := res.Val.(C)

		return client, nil
	case <-ctx.Done():
		var zero C

		return zero, ctx.Err()
	}
}

// Len returns the number of cached clients.
func (p *Pool[K, C]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.entries)
}

func (p *Pool[K, C]) cached(key K) (C, bool) {
	p.mu.RLock()
	found, ok := p.entries[key]
	p.mu.RUnlock()

	if !ok {
		var zero C

		return zero, false
	}

	found.lastUsed.Store(p.now().UnixNano())

	return found.client, true
}

// construct runs the factory once per group call. A factory panic is
// returned as ErrFactoryPanic.
func (p *Pool[K, C]) construct(ctx context.Context, key K) (client C, err error) {
	if found, ok := p.cached(key); ok {
		return found, nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrFactoryPanic, r)
		}
	}()

	client, err = p.factory(ctx, key)
	if err != nil {
		return client, err
	}

	p.store(key, client)

	return client, nil
}

func (p *Pool[K, C]) store(key K, client C) {
	p.mu.Lock()

	var (
		evictedKey K
		evicted    *entry[C]
	)

	if p.capacity > 0 && len(p.entries) >= p.capacity {
		evictedKey, evicted = p.oldest()
		delete(p.entries, evictedKey)
	}

	created := &entry[C]{client: client}
	created.lastUsed.Store(p.now().UnixNano())
	p.entries[key] = created

	p.mu.Unlock()

	if evicted != nil && p.onEvict != nil {
		p.onEvict(evictedKey, evicted.client)
	}
}

// groupKey identifies key within the construction group. %#v quotes string
// fields, so distinct keys never share a form.
func groupKey[K comparable](key K) string {
	return fmt.Sprintf("%#v", key)
}

// oldest must be called with mu held.
func (p *Pool[K, C]) oldest() (K, *entry[C]) {
	var (
		oldestKey   K
		oldestEntry *entry[C]
	)

	for key, candidate := range p.entries {
		if oldestEntry == nil || candidate.lastUsed.Load() < oldestEntry.lastUsed.Load() {
			oldestKey = key
			oldestEntry = candidate
		}
	}

	return oldestKey, oldestEntry
}
