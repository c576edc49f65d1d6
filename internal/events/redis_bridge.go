package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBridge relays hub changes between processes over a Redis pub/sub
// channel. Locally published changes are forwarded; changes received from
// other processes are re-published into the local hub tagged with their
// origin, so they are never forwarded back.
type RedisBridge struct {
	client  *redis.Client
	hub     *Hub
	channel string
	id      string
	log     zerolog.Logger
	out     chan Change
}

// NewRedisBridge attaches a bridge to hub. Call Run to start relaying.
func NewRedisBridge(client *redis.Client, hub *Hub, channel string, log zerolog.Logger) *RedisBridge {
	b := &RedisBridge{
		client:  client,
		hub:     hub,
		channel: channel,
		id:      uuid.NewString(),
		log:     log.With().Str("component", "redis_bridge").Logger(),
		out:     make(chan Change, 64),
	}
	hub.OnPublish(func(c Change) {
		if c.Origin != "" {
			return
		}
		select {
		case b.out <- c:
		default:
			b.log.Warn().Str("key", c.Key).Msg("change dropped: relay queue full")
		}
	})
	return b
}

// ID returns the origin tag this process stamps on relayed changes.
func (b *RedisBridge) ID() string { return b.id }

// Run relays changes until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before relaying.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	in := sub.Channel()

	b.log.Info().Str("channel", b.channel).Str("origin", b.id).Msg("bridge started")
	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("bridge stopping")
			return ctx.Err()

		case c := <-b.out:
			c.Origin = b.id
			payload, err := json.Marshal(c)
			if err != nil {
				continue
			}
			if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
				b.log.Warn().Err(err).Msg("publish change")
			}

		case msg, ok := <-in:
			if !ok {
				return nil
			}
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				b.log.Warn().Err(err).Msg("invalid change payload")
				continue
			}
			if c.Origin == "" || c.Origin == b.id {
				continue
			}
			b.hub.Publish(c)
		}
	}
}
