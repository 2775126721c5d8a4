package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cskr/pubsub"

	"github.com/doridoridoriand/wifiwatch/internal/state"
)

// TopicSnapshot carries one state.Snapshot per poll tick.
const TopicSnapshot = "snapshot"

// Capacity is the per-subscriber buffer.
const Capacity = 16

type Subscription chan any

// Publisher is what the poll loop needs from the bus.
type Publisher interface {
	Publish(snap state.Snapshot)
}

type SnapshotBus interface {
	Publisher
	Subscribe() Subscription
	Unsubscribe(ch Subscription)
	Close()
}

type PubSubBus struct {
	ps     *pubsub.PubSub
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func New(logger *slog.Logger) *PubSubBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &PubSubBus{
		ps:     pubsub.New(Capacity),
		logger: logger,
	}
}

// Publish never blocks: a subscriber with a full buffer misses this snapshot.
func (b *PubSubBus) Publish(snap state.Snapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.logger.Debug("publish", "topic", TopicSnapshot, "seq", snap.Seq, "networks", len(snap.Networks))
	b.ps.TryPub(snap, TopicSnapshot)
}

func (b *PubSubBus) Subscribe() Subscription {
	ch := b.ps.Sub(TopicSnapshot)
	b.logger.Debug("subscribe", "topic", TopicSnapshot)
	return ch
}

// Unsubscribe must not be called from the goroutine draining ch.
func (b *PubSubBus) Unsubscribe(ch Subscription) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.ps.Unsub(ch, TopicSnapshot)
	b.logger.Debug("unsubscribe", "topic", TopicSnapshot)
}

// Close shuts the bus down and closes every subscription channel.
func (b *PubSubBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.ps.Shutdown()
}

// Consume calls fn for every snapshot on sub until ctx is done or the
// subscription is closed.
func Consume(ctx context.Context, sub Subscription, fn func(state.Snapshot)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub:
			if !ok {
				return nil
			}
			if snap, ok := msg.(state.Snapshot); ok {
				fn(snap)
			}
		}
	}
}
