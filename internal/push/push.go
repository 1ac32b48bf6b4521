// Package push delivers live server events to the dashboard. A Dialer opens
// one Channel per consumer; the consumer owns the handle and must Close it
// when it is torn down. Events on a Channel arrive in receipt order.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/innohedge/console/internal/apiclient"
	"github.com/innohedge/console/internal/config"
)

// EventNewTraffic is emitted by the backend for every recorded request.
const EventNewTraffic = "newTraffic"

// Event is one named server message with its raw JSON payload.
type Event struct {
	Name string
	Data json.RawMessage
}

// DecodeTraffic parses a newTraffic payload {endpoint, timestamp}.
func DecodeTraffic(ev Event) (apiclient.TrafficHit, error) {
	if ev.Name != EventNewTraffic {
		return apiclient.TrafficHit{}, fmt.Errorf("push: event %q is not %q", ev.Name, EventNewTraffic)
	}
	var hit apiclient.TrafficHit
	if err := json.Unmarshal(ev.Data, &hit); err != nil {
		return apiclient.TrafficHit{}, fmt.Errorf("push: decoding %s: %w", ev.Name, err)
	}
	return hit, nil
}

// Channel is an open subscription. Events is closed once the channel has
// shut down, either through Close or because the transport failed.
type Channel interface {
	Events() <-chan Event
	Close() error
}

// Dialer opens channels. token is the caller's bearer credential, forwarded
// to transports that authenticate subscribers.
type Dialer interface {
	Dial(ctx context.Context, token string) (Channel, error)
}

// NewDialer returns the dialer selected by cfg. rdb is only used by the
// redis transport.
func NewDialer(cfg config.PushConfig, rdb *redis.Client) (Dialer, error) {
	switch cfg.Transport {
	case config.PushSocketIO:
		return NewSocketIODialer(cfg.URL,
			WithReconnect(cfg.ReconnectAttempts, defaultReconnectDelay, defaultReconnectMaxDelay),
		), nil
	case config.PushRedis:
		if rdb == nil {
			return nil, fmt.Errorf("push: redis transport needs a redis client")
		}
		return NewRedisDialer(rdb, cfg.RedisChannel), nil
	case config.PushNone:
		return NopDialer{}, nil
	default:
		return nil, fmt.Errorf("push: unknown transport %q", cfg.Transport)
	}
}

// NopDialer opens channels that never deliver anything.
type NopDialer struct{}

// Dial implements Dialer.
func (NopDialer) Dial(ctx context.Context, token string) (Channel, error) {
	return &nopChannel{events: make(chan Event)}, nil
}

type nopChannel struct {
	events chan Event
	once   sync.Once
}

func (c *nopChannel) Events() <-chan Event { return c.events }

func (c *nopChannel) Close() error {
	c.once.Do(func() { close(c.events) })
	return nil
}
