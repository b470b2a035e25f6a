// internal/events/bus.go
package events

import (
	"context"
	"sync"

	evtypes "fanpay-service/internal/domain/events"

	"go.uber.org/zap"
)

// Listener consumes one event. Errors are logged, never propagated to the
// publisher; each listener filters by event name and its own predicate.
type Listener func(ctx context.Context, e evtypes.Event) error

type registration struct {
	name string
	fn   Listener
}

// Bus is the in-process publish/subscribe mechanism. Dispatch is synchronous
// but isolated: a panicking or failing listener cannot fail the publish.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]registration
	logger *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[string][]registration),
		logger: logger,
	}
}

// Subscribe registers a named listener on a channel. Names only exist for
// log attribution.
func (b *Bus) Subscribe(channel, name string, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[channel] = append(b.subs[channel], registration{name: name, fn: fn})
}

// Publish dispatches the event to every listener on its channel. Fire and
// forget from the publisher's perspective.
func (b *Bus) Publish(ctx context.Context, e evtypes.Event) {
	b.mu.RLock()
	regs := make([]registration, len(b.subs[e.Channel]))
	copy(regs, b.subs[e.Channel])
	b.mu.RUnlock()

	for _, reg := range regs {
		b.dispatch(ctx, reg, e)
	}
}

func (b *Bus) dispatch(ctx context.Context, reg registration, e evtypes.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panicked",
				zap.String("listener", reg.name),
				zap.String("channel", e.Channel),
				zap.Any("panic", r),
			)
		}
	}()

	if err := reg.fn(ctx, e); err != nil {
		b.logger.Error("event listener failed",
			zap.String("listener", reg.name),
			zap.String("channel", e.Channel),
			zap.String("event", e.EventName),
			zap.Error(err),
		)
	}
}
