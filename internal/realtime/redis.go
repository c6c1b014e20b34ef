package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "storefront:realtime"

// Relay shares events between instances through a Redis channel. Notify
// publishes to Redis; Run feeds everything received into the local broker,
// including this instance's own events.
type Relay struct {
	client  *redis.Client
	channel string
	local   *Broker
	log     *slog.Logger
}

func NewRelay(client *redis.Client, channel string, local *Broker, log *slog.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Relay{client: client, channel: channel, local: local, log: log}
}

// NewRedisClient parses a redis:// URL and checks the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (r *Relay) Notify(ctx context.Context, ev Event) {
	if !isFeedTable(ev.Table) {
		return
	}
	payload, err := json.Marshal(ev)
	if err == nil {
		err = r.client.Publish(ctx, r.channel, payload).Err()
	}
	if err != nil {
		// still reach local subscribers
		r.log.Warn("realtime relay publish failed", "table", ev.Table, "error", err)
		r.local.Publish(ev)
	}
}

// Run blocks until ctx is done or the subscription fails.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Info("realtime relay subscribed", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.log.Warn("realtime relay dropped malformed event", "error", err)
				continue
			}
			r.local.Publish(ev)
		}
	}
}
