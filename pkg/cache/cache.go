// Package cache holds list/query results per user collection and tells
// subscribers when a collection becomes stale.
//
// Services never write optimistic values; they only invalidate. Readers
// repopulate through GetOrLoad/Load.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ekaya-inc/content-engine/pkg/metrics"
	"github.com/ekaya-inc/content-engine/pkg/models"
)

// Key identifies one user's collection. Every variant (filter combination,
// page) of a collection is dropped when the key is invalidated.
type Key struct {
	Collection models.EntityKind `json:"collection"`
	UserID     string            `json:"user_id"`
}

// NewKey builds a Key.
func NewKey(collection models.EntityKind, userID string) Key {
	return Key{Collection: collection, UserID: userID}
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Collection, k.UserID)
}

// Origin records where an invalidation came from.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// Event is delivered to subscribers after a key is invalidated.
type Event struct {
	Key    Key       `json:"key"`
	Origin Origin    `json:"origin"`
	At     time.Time `json:"at"`
}

// Broadcaster forwards local invalidations to other server instances.
type Broadcaster interface {
	Broadcast(ctx context.Context, key Key) error
}

// Invalidator is the narrow interface services depend on.
type Invalidator interface {
	Invalidate(ctx context.Context, key Key)
}

type entry struct {
	value     any
	expiresAt time.Time
}

type collection struct {
	generation uint64
	variants   map[string]entry
}

// QueryCache is a mutex-guarded in-process cache with per-key generations.
// A load that started before an invalidation never stores its result.
type QueryCache struct {
	mu          sync.Mutex
	ttl         time.Duration
	collections map[Key]*collection
	subscribers map[int]func(Event)
	nextSubID   int
	broadcaster Broadcaster
	loads       singleflight.Group
	now         func() time.Time
	logger      *zap.Logger
}

var _ Invalidator = (*QueryCache)(nil)

// New creates a QueryCache. A zero ttl keeps entries until invalidated.
func New(ttl time.Duration, logger *zap.Logger) *QueryCache {
	return &QueryCache{
		ttl:         ttl,
		collections: make(map[Key]*collection),
		subscribers: make(map[int]func(Event)),
		now:         time.Now,
		logger:      logger.Named("cache"),
	}
}

// SetBroadcaster attaches a cross-instance broadcaster.
func (c *QueryCache) SetBroadcaster(b Broadcaster) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcaster = b
}

// Get returns the cached value for key and variant.
func (c *QueryCache) Get(key Key, variant string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	col, ok := c.collections[key]
	if !ok {
		return nil, false
	}
	e, ok := col.variants[variant]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		delete(col.variants, variant)
		return nil, false
	}
	return e.value, true
}

// Set stores value for key and variant.
func (c *QueryCache) Set(key Key, variant string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(c.collectionLocked(key), variant, value)
}

func (c *QueryCache) collectionLocked(key Key) *collection {
	col, ok := c.collections[key]
	if !ok {
		col = &collection{variants: make(map[string]entry)}
		c.collections[key] = col
	}
	return col
}

func (c *QueryCache) setLocked(col *collection, variant string, value any) {
	e := entry{value: value}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}
	col.variants[variant] = e
}

// GetOrLoad returns the cached value or calls loader once for concurrent
// callers of the same key and variant.
func (c *QueryCache) GetOrLoad(ctx context.Context, key Key, variant string, loader func(ctx context.Context) (any, error)) (any, error) {
	if v, ok := c.Get(key, variant); ok {
		return v, nil
	}

	c.mu.Lock()
	generation := c.collectionLocked(key).generation
	c.mu.Unlock()

	v, err, _ := c.loads.Do(key.String()+"|"+variant, func() (any, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		col := c.collectionLocked(key)
		if col.generation == generation {
			c.setLocked(col, variant, value)
		}
		return value, nil
	})
	return v, err
}

// Load is GetOrLoad with a typed result.
func Load[T any](ctx context.Context, c *QueryCache, key Key, variant string, loader func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.GetOrLoad(ctx, key, variant, func(ctx context.Context) (any, error) {
		return loader(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache entry %s/%s has type %T", key, variant, v)
	}
	return typed, nil
}

// Invalidate drops every variant of key, notifies subscribers and broadcasts
// the invalidation to other instances. Broadcast failures are logged only.
func (c *QueryCache) Invalidate(ctx context.Context, key Key) {
	c.drop(key, OriginLocal)

	c.mu.Lock()
	b := c.broadcaster
	c.mu.Unlock()
	if b == nil {
		return
	}
	if err := b.Broadcast(ctx, key); err != nil {
		c.logger.Warn("Failed to broadcast cache invalidation",
			zap.String("key", key.String()),
			zap.Error(err))
	}
}

// ApplyRemote drops key because another instance invalidated it. It is not re-broadcast.
func (c *QueryCache) ApplyRemote(key Key) {
	c.drop(key, OriginRemote)
}

func (c *QueryCache) drop(key Key, origin Origin) {
	c.mu.Lock()
	col := c.collectionLocked(key)
	col.generation++
	col.variants = make(map[string]entry)
	subs := make([]func(Event), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	metrics.RecordInvalidation(string(origin))

	evt := Event{Key: key, Origin: origin, At: c.now()}
	for _, fn := range subs {
		fn(evt)
	}
}

// Subscribe registers fn to be called after every invalidation. fn runs on
// the invalidating goroutine and must not block. The returned function removes
// the subscription.
func (c *QueryCache) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
		})
	}
}
