package events

import (
	"context"
	"sync"

	"genstudio/internal/domain"
)

const defaultBufferSize = 16

// MemoryBus is the in-process Bus. It is only visible inside one process, so
// API instances that do not run the worker need RedisBus instead.
type MemoryBus struct {
	mu         sync.RWMutex
	topics     map[domain.EventType]map[uint64]*subscriber
	nextID     uint64
	bufferSize int
	closed     bool
}

type subscriber struct {
	id      uint64
	types   []domain.EventType
	channel chan domain.Event
	cancel  context.CancelFunc
	once    sync.Once
}

// MemoryOption configures a MemoryBus.
type MemoryOption func(*MemoryBus)

// WithBufferSize sets the per-subscriber channel capacity. Events published
// while a subscriber's buffer is full are dropped for that subscriber.
func WithBufferSize(size int) MemoryOption {
	return func(b *MemoryBus) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus(opts ...MemoryOption) *MemoryBus {
	b := &MemoryBus{
		topics:     make(map[domain.EventType]map[uint64]*subscriber),
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers event to every current subscriber of its type without blocking.
func (b *MemoryBus) Publish(ctx context.Context, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	for _, sub := range b.topics[event.Type] {
		select {
		case sub.channel <- event:
		default:
			// Subscriber is not keeping up; drop rather than stall the worker.
		}
	}
	return nil
}

// Subscribe registers a subscriber for the given event types.
func (b *MemoryBus) Subscribe(ctx context.Context, types ...domain.EventType) (<-chan domain.Event, func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, ErrBusClosed
	}
	b.nextID++
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscriber{
		id:      b.nextID,
		types:   normalizeTypes(types),
		channel: make(chan domain.Event, b.bufferSize),
		cancel:  cancel,
	}
	for _, t := range sub.types {
		if b.topics[t] == nil {
			b.topics[t] = make(map[uint64]*subscriber)
		}
		b.topics[t][sub.id] = sub
	}
	b.mu.Unlock()

	unsubscribe := func() {
		cancel()
		b.remove(sub)
	}
	go func() {
		<-subCtx.Done()
		b.remove(sub)
	}()
	return sub.channel, unsubscribe, nil
}

// SubscriberCount reports how many subscribers currently listen to t.
func (b *MemoryBus) SubscriberCount(t domain.EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[t])
}

// Close ends every subscription and rejects further use.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.topics {
		for _, sub := range subs {
			sub.cancel()
			sub.once.Do(func() { close(sub.channel) })
		}
	}
	b.topics = make(map[domain.EventType]map[uint64]*subscriber)
	return nil
}

func (b *MemoryBus) remove(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range sub.types {
		if subs := b.topics[t]; subs != nil {
			delete(subs, sub.id)
			if len(subs) == 0 {
				delete(b.topics, t)
			}
		}
	}
	sub.once.Do(func() { close(sub.channel) })
}

var _ Bus = (*MemoryBus)(nil)
