// Package events fans job lifecycle transitions out to live subscribers.
package events

import (
	"context"
	"errors"

	"genstudio/internal/domain"
)

var (
	// ErrBusClosed is returned by Publish and Subscribe after Close.
	ErrBusClosed = errors.New("event bus is closed")
)

// Bus is a publish/subscribe registry for job events. Publish never blocks on
// slow subscribers and nothing is replayed to late subscribers.
type Bus interface {
	Publish(ctx context.Context, event domain.Event) error
	// Subscribe delivers events of the given types (all types when none are
	// given) until the returned cancel func is called or ctx is done. The
	// channel is closed once the subscription ends.
	Subscribe(ctx context.Context, types ...domain.EventType) (<-chan domain.Event, func(), error)
	Close() error
}

func normalizeTypes(types []domain.EventType) []domain.EventType {
	if len(types) == 0 {
		return domain.AllEventTypes
	}
	seen := make(map[domain.EventType]struct{}, len(types))
	out := make([]domain.EventType, 0, len(types))
	for _, t := range types {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
