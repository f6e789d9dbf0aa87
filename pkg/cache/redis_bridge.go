package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBridge relays invalidations between server instances over a Redis
// pub/sub channel.
type RedisBridge struct {
	client     *redis.Client
	channel    string
	instanceID string
	cache      *QueryCache
	logger     *zap.Logger
}

var _ Broadcaster = (*RedisBridge)(nil)

type invalidationMessage struct {
	Instance string `json:"instance"`
	Key      Key    `json:"key"`
}

// NewRedisBridge creates a bridge and registers it as the cache's broadcaster.
func NewRedisBridge(client *redis.Client, channel string, cache *QueryCache, logger *zap.Logger) *RedisBridge {
	b := &RedisBridge{
		client:     client,
		channel:    channel,
		instanceID: uuid.NewString(),
		cache:      cache,
		logger:     logger.Named("cache-bridge"),
	}
	cache.SetBroadcaster(b)
	return b
}

// Broadcast publishes key to the other instances.
func (b *RedisBridge) Broadcast(ctx context.Context, key Key) error {
	payload, err := json.Marshal(invalidationMessage{Instance: b.instanceID, Key: key})
	if err != nil {
		return fmt.Errorf("marshal invalidation: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}

// Run consumes the channel until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting readiness.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}
	b.logger.Info("Listening for cache invalidations", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(msg.Payload)
		}
	}
}

// handle applies a remote invalidation. Messages from this instance are ignored.
func (b *RedisBridge) handle(payload string) {
	var msg invalidationMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		b.logger.Warn("Ignoring malformed invalidation message", zap.Error(err))
		return
	}
	if msg.Instance == b.instanceID {
		return
	}
	b.cache.ApplyRemote(msg.Key)
}
