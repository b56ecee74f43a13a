package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"spcs.org/internal/ids"
	"spcs.org/internal/obs"
)

const defaultChannel = "spcs:realtime"

type envelope struct {
	Origin string `json:"origin"`
	Group  string `json:"group"`
	Event  Event  `json:"event"`
}

var _ Publisher = (*RedisBackplane)(nil)

// RedisBackplane republishes broadcasts to every instance sharing a Redis
// channel. Local subscribers are served directly; remote copies are
// delivered by Run.
type RedisBackplane struct {
	client   *redis.Client
	registry *Registry
	channel  string
	origin   string
}

func NewRedisBackplane(client *redis.Client, registry *Registry) *RedisBackplane {
	return &RedisBackplane{
		client:   client,
		registry: registry,
		channel:  defaultChannel,
		origin:   ids.Opaque(),
	}
}

// Publish delivers locally, then forwards the event to peer instances.
func (b *RedisBackplane) Publish(ctx context.Context, group string, ev Event) (int, error) {
	n := b.registry.Broadcast(group, ev)
	data, err := json.Marshal(envelope{Origin: b.origin, Group: group, Event: ev})
	if err != nil {
		return n, fmt.Errorf("marshal realtime envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return n, fmt.Errorf("publish realtime event: %w", err)
	}
	return n, nil
}

// Run relays events published by other instances until ctx is done. ready,
// when non-nil, is closed once the subscription is confirmed.
func (b *RedisBackplane) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe realtime channel: %w", err)
	}
	if ready != nil {
		close(ready)
	}
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				obs.Warn("realtime_envelope_invalid", map[string]any{"error": err})
				continue
			}
			if env.Origin == b.origin {
				continue
			}
			b.registry.Broadcast(env.Group, env.Event)
		}
	}
}
