// ABOUTME: In-memory pub/sub broadcaster for realtime event fan-out.
// ABOUTME: Publishes envelopes to all subscribers of a channel, non-blocking.

package fanout

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Publisher pushes an envelope onto a named channel. Delivery is
// fire-and-forget: no error and no acknowledgement.
type Publisher interface {
	Publish(ctx context.Context, channel string, env *Envelope)
}

// Broadcaster provides in-memory pub/sub for realtime envelopes.
// Websocket sessions subscribe to person and chat channels and receive
// events as they are dispatched. A single-instance deployment uses this
// directly; multi-instance deployments use the Redis publisher instead.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *Envelope // channel -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan *Envelope),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber on a channel. Returns the receive
// channel and a subscription ID for later unsubscription. The
// subscription is automatically cleaned up when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, channel string) (<-chan *Envelope, string) {
	subID := uuid.New().String()
	ch := make(chan *Envelope, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[channel]; !ok {
		b.subscribers[channel] = make(map[string]chan *Envelope)
	}
	b.subscribers[channel][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "channel", channel, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(channel, subID)
	}()

	return ch, subID
}

// Publish sends an envelope to all subscribers of the channel.
// Non-blocking: the envelope is dropped for subscribers whose channels
// are full.
func (b *Broadcaster) Publish(_ context.Context, channel string, env *Envelope) {
	b.mu.RLock()
	subs, ok := b.subscribers[channel]
	if !ok || len(subs) == 0 {
		b.mu.RUnlock()
		return
	}

	// Copy channels under read lock to avoid holding it during sends.
	targets := make([]chan *Envelope, 0, len(subs))
	for _, ch := range subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- env:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"channel", channel, "action", env.Action)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(channel, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[channel]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}
	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, channel)
	}

	b.logger.Debug("subscriber removed", "channel", channel, "sub_id", subID)
}

// SubscriberCount returns the number of active subscriptions on a channel.
func (b *Broadcaster) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[channel])
}
