package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dressly/tryon/pkg/channels/gochannel"
	"github.com/dressly/tryon/pkg/eventbus"
	"github.com/dressly/tryon/pkg/events"
	"github.com/dressly/tryon/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newTestBus(t)

	received := make(chan *events.StepChanged, 1)

	err := bus.Handle(events.StepChangedEvent, func(ctx context.Context, event any) error {
		received <- event.(*events.StepChanged)

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	published := events.StepChanged{
		BaseEvent: events.NewBase(events.StepChangedEvent),
		From:      models.StepChoosing,
		To:        models.StepPreviewing,
	}
	require.NoError(t, bus.Publish(ctx, string(events.StepChangedEvent), published))

	select {
	case got := <-received:
		assert.Equal(t, published.ID, got.ID)
		assert.Equal(t, models.StepChoosing, got.From)
		assert.Equal(t, models.StepPreviewing, got.To)
		assert.Equal(t, events.StepChangedEvent, got.GetType())
	case <-time.After(2 * time.Second):
		t.Fatal("event never arrived")
	}
}

func TestEventsWithoutHandlerAreAcked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newTestBus(t)

	received := make(chan *events.SubmissionFailed, 1)

	err := bus.Handle(events.SubmissionFailedEvent, func(ctx context.Context, event any) error {
		received <- event.(*events.SubmissionFailed)

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for this one; it must not wedge the stream.
	require.NoError(t, bus.Publish(ctx, string(events.FlowResetEvent), events.FlowReset{
		BaseEvent: events.NewBase(events.FlowResetEvent),
	}))

	failure := events.SubmissionFailed{
		BaseEvent: events.NewBase(events.SubmissionFailedEvent),
		GarmentID: "green-tshirt",
		Kind:      models.KindTimeout,
		Error:     "deadline exceeded",
	}
	require.NoError(t, bus.Publish(ctx, string(events.SubmissionFailedEvent), failure))

	select {
	case got := <-received:
		assert.Equal(t, "green-tshirt", got.GarmentID)
		assert.Equal(t, models.KindTimeout, got.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("event never arrived")
	}
}

func TestGenerateIDIsUnique(t *testing.T) {
	bus := newTestBus(t)

	seen := make(map[string]bool)
	for range 100 {
		id := bus.GenerateID()
		assert.NotEmpty(t, id)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
