package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"threadspire/internal/logger"

	goredis "github.com/redis/go-redis/v9"
)

type envelope struct {
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload"`
}

// RedisBroker publishes through a Redis channel so that every instance's
// local Hub sees every change. Subscriptions stay local.
type RedisBroker struct {
	hub     *Hub
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewRedisBroker(url, channel string, hub *Hub, log *logger.Logger) (*RedisBroker, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if channel == "" {
		channel = "threadspire:realtime"
	}
	return &RedisBroker{
		hub:     hub,
		log:     log.With("component", "RedisBroker"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *RedisBroker) Publish(ctx context.Context, key string, payload []byte) error {
	raw, err := json.Marshal(envelope{Key: key, Payload: payload})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *RedisBroker) Subscribe(key string) (<-chan []byte, func()) {
	return b.hub.Subscribe(key)
}

// StartForwarder relays channel messages into the local hub until ctx is
// done.
func (b *RedisBroker) StartForwarder(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					b.log.Warn("bad redis payload", "error", err)
					continue
				}
				b.hub.Broadcast(env.Key, env.Payload)
			}
		}
	}()
	return nil
}

func (b *RedisBroker) Close() error {
	return b.rdb.Close()
}
