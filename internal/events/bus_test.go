// internal/events/bus_test.go
package events

import (
	"context"
	"errors"
	"testing"

	evtypes "fanpay-service/internal/domain/events"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPublishFansOutToAllListeners(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var got []string
	bus.Subscribe(evtypes.ChannelTransactionSuccess, "first", func(ctx context.Context, e evtypes.Event) error {
		got = append(got, "first")
		return nil
	})
	bus.Subscribe(evtypes.ChannelTransactionSuccess, "second", func(ctx context.Context, e evtypes.Event) error {
		got = append(got, "second")
		return nil
	})

	bus.Publish(context.Background(), evtypes.Event{
		Channel:   evtypes.ChannelTransactionSuccess,
		EventName: evtypes.EventCreated,
	})

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestPublishIsolatesFailingListener(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var reached bool
	bus.Subscribe("ch", "failing", func(ctx context.Context, e evtypes.Event) error {
		return errors.New("boom")
	})
	bus.Subscribe("ch", "panicking", func(ctx context.Context, e evtypes.Event) error {
		panic("boom")
	})
	bus.Subscribe("ch", "healthy", func(ctx context.Context, e evtypes.Event) error {
		reached = true
		return nil
	})

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), evtypes.Event{Channel: "ch"})
	})
	assert.True(t, reached)
}

func TestPublishToChannelWithoutListeners(t *testing.T) {
	bus := NewBus(zap.NewNop())

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), evtypes.Event{Channel: "empty"})
	})
}

func TestListenersAreChannelScoped(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var calls int
	bus.Subscribe("a", "listener", func(ctx context.Context, e evtypes.Event) error {
		calls++
		return nil
	})

	bus.Publish(context.Background(), evtypes.Event{Channel: "b"})
	assert.Zero(t, calls)

	bus.Publish(context.Background(), evtypes.Event{Channel: "a"})
	assert.Equal(t, 1, calls)
}
