package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisClient(redisURL string, keyPrefix string) (*RedisClient, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test the connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisClient{
		client:    client,
		keyPrefix: keyPrefix,
	}, nil
}

// NewRedisClientFromClient wraps an existing go-redis client without pinging it.
func NewRedisClientFromClient(client *redis.Client, keyPrefix string) *RedisClient {
	return &RedisClient{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// prefixKey adds the configured prefix to a key
func (r *RedisClient) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

// Get retrieves a value from Redis with the configured key prefix
func (r *RedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	return r.client.Get(ctx, r.prefixKey(key))
}

// Set stores a value in Redis with the configured key prefix
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	return r.client.Set(ctx, r.prefixKey(key), value, expiration)
}

// Ping checks the Redis connection
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Del deletes a key from Redis with the configured key prefix
func (r *RedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	prefixedKeys := make([]string, len(keys))
	for i, key := range keys {
		prefixedKeys[i] = r.prefixKey(key)
	}
	return r.client.Del(ctx, prefixedKeys...)
}

// SetNX sets a key if it does not exist with the configured key prefix
func (r *RedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	return r.client.SetNX(ctx, r.prefixKey(key), value, expiration)
}

// Publish publishes a message to a Redis pub/sub channel.
// Channel names are prefixed the same as keys so that Redis ACL rules apply consistently.
func (r *RedisClient) Publish(ctx context.Context, channel string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return r.client.Publish(ctx, r.prefixKey(channel), data).Err()
}

// Subscribe returns a PubSub handle for the given channels.
// Channel names are prefixed the same as keys so that Redis ACL rules apply consistently.
// The returned PubSub transparently strips the prefix from received message channel names.
func (r *RedisClient) Subscribe(ctx context.Context, channels ...string) *PubSub {
	prefixed := make([]string, len(channels))
	for i, ch := range channels {
		prefixed[i] = r.prefixKey(ch)
	}
	return &PubSub{
		inner:     r.client.Subscribe(ctx, prefixed...),
		keyPrefix: r.keyPrefix,
	}
}

// PubSubEventKind distinguishes subscription confirmations from messages.
type PubSubEventKind int

const (
	PubSubSubscribed PubSubEventKind = iota
	PubSubUnsubscribed
	PubSubMessage
)

// PubSubEvent is a subscription confirmation or a received message. Channel
// has the key prefix stripped.
type PubSubEvent struct {
	Kind    PubSubEventKind
	Channel string
	Payload string
}

// PubSub wraps *redis.PubSub applying key-prefix handling transparently.
// Subscribe/Unsubscribe calls have the prefix applied; incoming channel names
// have the prefix stripped so callers work with unprefixed names.
type PubSub struct {
	inner     *redis.PubSub
	keyPrefix string
	once      sync.Once
	events    chan PubSubEvent
}

// Subscribe adds channels to the subscription.
func (p *PubSub) Subscribe(ctx context.Context, channels ...string) error {
	return p.inner.Subscribe(ctx, p.prefixAll(channels)...)
}

// Unsubscribe removes channels from the subscription.
func (p *PubSub) Unsubscribe(ctx context.Context, channels ...string) error {
	return p.inner.Unsubscribe(ctx, p.prefixAll(channels)...)
}

func (p *PubSub) prefixAll(channels []string) []string {
	prefixed := make([]string, len(channels))
	for i, ch := range channels {
		prefixed[i] = p.keyPrefix + ch
	}
	return prefixed
}

// Events returns a channel of subscription confirmations and messages. It is
// backed by ChannelWithSubscriptions so callers can wait for Redis to confirm
// a SUBSCRIBE before relying on it. The channel closes when the PubSub closes.
func (p *PubSub) Events() <-chan PubSubEvent {
	p.once.Do(func() {
		p.events = make(chan PubSubEvent, 100)
		innerCh := p.inner.ChannelWithSubscriptions()
		go func() {
			defer close(p.events)
			for raw := range innerCh {
				switch m := raw.(type) {
				case *redis.Subscription:
					kind := PubSubSubscribed
					if m.Kind == "unsubscribe" {
						kind = PubSubUnsubscribed
					}
					p.events <- PubSubEvent{
						Kind:    kind,
						Channel: strings.TrimPrefix(m.Channel, p.keyPrefix),
					}
				case *redis.Message:
					p.events <- PubSubEvent{
						Kind:    PubSubMessage,
						Channel: strings.TrimPrefix(m.Channel, p.keyPrefix),
						Payload: m.Payload,
					}
				}
			}
		}()
	})
	return p.events
}

// Close closes the subscription.
func (p *PubSub) Close() error {
	return p.inner.Close()
}

// Eval executes a Lua script with the configured key prefix applied to keys
func (r *RedisClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	prefixedKeys := make([]string, len(keys))
	for i, key := range keys {
		prefixedKeys[i] = r.prefixKey(key)
	}
	return r.client.Eval(ctx, script, prefixedKeys, args...)
}
