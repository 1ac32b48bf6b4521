package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// envelope is the wire form of an event on the Redis channel.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RedisDialer subscribes to a Redis pub/sub channel carrying
// {"event": ..., "data": ...} messages.
type RedisDialer struct {
	client  *redis.Client
	channel string
}

// NewRedisDialer creates a dialer for the given pub/sub channel.
func NewRedisDialer(client *redis.Client, channel string) *RedisDialer {
	return &RedisDialer{client: client, channel: channel}
}

// Dial subscribes and waits for the subscription to be confirmed. The token
// is not used; access to Redis is governed by its own credentials.
func (d *RedisDialer) Dial(ctx context.Context, token string) (Channel, error) {
	ps := d.client.Subscribe(ctx, d.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("push: subscribing to %s: %w", d.channel, err)
	}

	ch := &redisChannel{
		ps:     ps,
		events: make(chan Event),
		done:   make(chan struct{}),
	}
	go ch.loop(ps.Channel())
	return ch, nil
}

type redisChannel struct {
	ps     *redis.PubSub
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func (c *redisChannel) Events() <-chan Event { return c.events }

// Close unsubscribes. Safe to call more than once.
func (c *redisChannel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.ps.Close()
	})
	return err
}

func (c *redisChannel) loop(msgs <-chan *redis.Message) {
	defer close(c.events)

	for {
		select {
		case <-c.done:
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil || env.Event == "" {
				slog.Warn("push dropped malformed message",
					slog.String("channel", m.Channel),
					slog.String("payload", m.Payload),
				)
				continue
			}
			select {
			case c.events <- Event{Name: env.Event, Data: env.Data}:
			case <-c.done:
				return
			}
		}
	}
}
