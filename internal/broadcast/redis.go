package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/example/snipsync/internal/types"
	"github.com/example/snipsync/internal/ws"
)

const (
	defaultTopic     = "snippets:events"
	defaultDedupeTTL = 2 * time.Minute
	maxBackoffDelay  = 30 * time.Second
)

type redisMessage struct {
	EventID    string `json:"event_id"`
	Origin     string `json:"origin,omitempty"`
	Payload    []byte `json:"payload"`
	EnqueuedAt int64  `json:"enqueued_at"`
}

// RedisBroadcaster publishes snippet events to Redis and fans them back out
// to local websocket subscribers, so every server instance delivers the same
// event stream. The sender is NOT excluded: clients self-filter by snippet
// identifier.
type RedisBroadcaster struct {
	client   *redis.Client
	registry *ws.ConnectionRegistry
	logger   zerolog.Logger

	topic     string
	dedupeTTL time.Duration

	seenMu sync.Mutex
	seen   map[types.EventID]time.Time

	latency prometheus.Histogram
}

// NewRedisBroadcaster constructs a broadcaster backed by Redis Pub/Sub.
func NewRedisBroadcaster(client *redis.Client, registry *ws.ConnectionRegistry, logger zerolog.Logger) *RedisBroadcaster {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "broadcast",
		Name:      "enqueue_to_send_seconds",
		Help:      "Observed latency between enqueue and delivery to websocket subscribers.",
		Buckets:   prometheus.LinearBuckets(0.005, 0.005, 12),
	})

	if err := prometheus.Register(histogram); err != nil {
		if regErr, ok := err.(prometheus.AlreadyRegisteredError); ok {
			histogram = regErr.ExistingCollector.(prometheus.Histogram)
		}
	}

	return &RedisBroadcaster{
		client:    client,
		registry:  registry,
		logger:    logger,
		topic:     defaultTopic,
		dedupeTTL: defaultDedupeTTL,
		seen:      make(map[types.EventID]time.Time),
		latency:   histogram,
	}
}

// Publish serializes a snippet event and sends it to the shared topic,
// retrying with bounded backoff while the context allows.
func (b *RedisBroadcaster) Publish(ctx context.Context, evt types.Event) error {
	if b == nil || b.client == nil {
		return errors.New("nil broadcaster")
	}
	if evt.EventID == "" {
		return errors.New("event id is required for duplicate suppression")
	}

	payload, err := evt.Encode()
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(redisMessage{
		EventID:    string(evt.EventID),
		Origin:     string(evt.Origin),
		Payload:    payload,
		EnqueuedAt: time.Now().UTC().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("encode redis payload: %w", err)
	}

	backoff := time.Second
	for {
		if err := b.client.Publish(ctx, b.topic, encoded).Err(); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			b.logger.Warn().Err(err).Str("topic", b.topic).Dur("backoff", backoff).Msg("redis publish failed; retrying")
			select {
			case <-time.After(backoff):
				backoff = minDuration(backoff*2, maxBackoffDelay)
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}
}

// Start begins consuming redis pub/sub messages and dispatching them to the
// local websocket subscribers.
func (b *RedisBroadcaster) Start(ctx context.Context) {
	go b.run(ctx)
}

func (b *RedisBroadcaster) run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		pubsub := b.client.Subscribe(ctx, b.topic)
		if err := b.consume(ctx, pubsub); err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Warn().Err(err).Dur("backoff", backoff).Msg("redis subscription interrupted; retrying")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff = minDuration(backoff*2, maxBackoffDelay)
		}
	}
}

func (b *RedisBroadcaster) consume(ctx context.Context, pubsub *redis.PubSub) error {
	defer pubsub.Close()

	ch := pubsub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("pubsub channel closed")
			}
			if err := b.process(msg); err != nil {
				b.logger.Warn().Err(err).Msg("failed to process broadcast message")
			}
		}
	}
}

func (b *RedisBroadcaster) process(msg *redis.Message) error {
	var payload redisMessage
	if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if payload.EventID == "" || len(payload.Payload) == 0 {
		return errors.New("incomplete payload")
	}

	if b.isDuplicate(types.EventID(payload.EventID)) {
		return nil
	}

	if payload.EnqueuedAt > 0 {
		b.latency.Observe(float64(time.Since(time.Unix(0, payload.EnqueuedAt))) / float64(time.Second))
	}

	b.registry.BroadcastText(payload.Payload)
	return nil
}

func (b *RedisBroadcaster) isDuplicate(id types.EventID) bool {
	b.seenMu.Lock()
	defer b.seenMu.Unlock()

	if ts, ok := b.seen[id]; ok {
		if time.Since(ts) < b.dedupeTTL {
			return true
		}
	}

	b.seen[id] = time.Now()
	cutoff := time.Now().Add(-b.dedupeTTL)
	for k, ts := range b.seen {
		if ts.Before(cutoff) {
			delete(b.seen, k)
		}
	}
	return false
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
