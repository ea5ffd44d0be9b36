// ABOUTME: Redis pub/sub publisher so multiple instances share fan-out.
// ABOUTME: Envelopes are published as JSON on the same channel names.

package fanout

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

// RedisPublisher publishes envelopes through Redis pub/sub. Websocket
// tiers on other instances subscribe to the same channel names they
// would use against the in-memory broadcaster.
type RedisPublisher struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisPublisher(client *redis.Client, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{
		client: client,
		logger: logger.With("component", "redis_publisher"),
	}
}

// Publish marshals the envelope and publishes it. Failures are logged
// and dropped; realtime delivery is best-effort.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, env *Envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		p.logger.Warn("encoding envelope failed", "channel", channel, "error", err)
		return
	}
	if err := p.client.Publish(ctx, channel, raw).Err(); err != nil {
		p.logger.Warn("publish failed", "channel", channel, "error", err)
	}
}

// RedisSubscriber adapts Redis pub/sub to the broadcaster's subscribe
// shape so the websocket tier does not care which backend is wired.
type RedisSubscriber struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisSubscriber(client *redis.Client, logger *slog.Logger) *RedisSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSubscriber{
		client: client,
		logger: logger.With("component", "redis_subscriber"),
	}
}

// Subscribe listens on the channel until ctx is cancelled, decoding each
// payload into an envelope. Undecodable payloads are skipped.
func (s *RedisSubscriber) Subscribe(ctx context.Context, channel string) (<-chan *Envelope, string) {
	sub := s.client.Subscribe(ctx, channel)
	out := make(chan *Envelope, subscriberBufferSize)

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					s.logger.Warn("bad envelope on channel", "channel", channel, "error", err)
					continue
				}
				select {
				case out <- &env:
				default:
					s.logger.Debug("dropped event for slow subscriber", "channel", channel)
				}
			}
		}
	}()

	return out, channel
}
