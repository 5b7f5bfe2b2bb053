package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"genstudio/internal/domain"
)

const defaultChannelPrefix = "genstudio:jobs:"

// RedisBus carries events over Redis Pub/Sub so every API instance sees the
// transitions produced by a worker running in another process. Like the
// in-process bus it keeps no history.
type RedisBus struct {
	client     *redis.Client
	prefix     string
	bufferSize int
	logger     zerolog.Logger

	mu     sync.Mutex
	subs   map[*redis.PubSub]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewRedisBus wraps an already connected client. The caller owns the client.
func NewRedisBus(client *redis.Client, logger zerolog.Logger) *RedisBus {
	return &RedisBus{
		client:     client,
		prefix:     defaultChannelPrefix,
		bufferSize: defaultBufferSize,
		logger:     logger,
		subs:       make(map[*redis.PubSub]struct{}),
	}
}

// Channel returns the Redis channel name used for t.
func (b *RedisBus) Channel(t domain.EventType) string {
	return b.prefix + string(t)
}

// Publish sends event on the channel for its type.
func (b *RedisBus) Publish(ctx context.Context, event domain.Event) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.Channel(event.Type), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe opens a Redis subscription for the given event types.
func (b *RedisBus) Subscribe(ctx context.Context, types ...domain.EventType) (<-chan domain.Event, func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, ErrBusClosed
	}
	b.mu.Unlock()

	types = normalizeTypes(types)
	channels := make([]string, len(types))
	for i, t := range types {
		channels[i] = b.Channel(t)
	}
	pubsub := b.client.Subscribe(ctx, channels...)
	// Wait for the subscription confirmation so events published right after
	// Subscribe returns are not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	b.mu.Lock()
	b.subs[pubsub] = struct{}{}
	b.mu.Unlock()

	out := make(chan domain.Event, b.bufferSize)
	subCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			b.mu.Lock()
			delete(b.subs, pubsub)
			b.mu.Unlock()
			_ = pubsub.Close()
		})
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(out)
		defer unsubscribe()
		messages := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				event, err := decodeEvent(strings.TrimPrefix(msg.Channel, b.prefix), msg.Payload)
				if err != nil {
					b.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("events: dropping malformed message")
					continue
				}
				select {
				case out <- event:
				default:
				}
			}
		}
	}()
	return out, unsubscribe, nil
}

// Close ends every open subscription. The Redis client itself stays open.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*redis.PubSub, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
	b.wg.Wait()
	return nil
}

func encodeEvent(event domain.Event) ([]byte, error) {
	payload, err := json.Marshal(event.Job)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return payload, nil
}

func decodeEvent(eventType, payload string) (domain.Event, error) {
	t := domain.EventType(eventType)
	switch t {
	case domain.EventProcessing, domain.EventCompleted, domain.EventFailed:
	default:
		return domain.Event{}, fmt.Errorf("unknown event type %q", eventType)
	}
	var job domain.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return domain.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return domain.Event{Type: t, Job: job}, nil
}

var _ Bus = (*RedisBus)(nil)
