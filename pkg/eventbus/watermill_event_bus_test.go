package eventbus_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/ruleflow/pkg/channels/gochannel"
	"github.com/dukex/ruleflow/pkg/eventbus"
	"github.com/dukex/ruleflow/pkg/events"
	"github.com/dukex/ruleflow/pkg/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, nil)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_Jobs(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	received := make(chan *rules.Job, 1)

	bus.HandleJobs(func(_ context.Context, job *rules.Job) error {
		received <- job

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	job := &rules.Job{
		ID:         "j1",
		RuleID:     "r1",
		ActionKind: "Webhook",
		JobData:    json.RawMessage(`{"request_url":"https://example.com"}`),
		Created:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, bus.PublishJob(ctx, job))

	select {
	case got := <-received:
		assert.Equal(t, "j1", got.ID)
		assert.Equal(t, "Webhook", got.ActionKind)
		assert.JSONEq(t, string(job.JobData), string(got.JobData))
		assert.True(t, job.Created.Equal(got.Created))
	case <-time.After(2 * time.Second):
		t.Fatal("job not delivered")
	}
}

func TestWatermillEventBus_Events(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	received := make(chan events.EnrichedEvent, 1)

	bus.HandleEvents(func(_ context.Context, event events.EnrichedEvent) error {
		received <- event

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.PublishEvent(ctx, &events.ContentEvent{
		BaseEvent: events.BaseEvent{AppID: events.NamedID{ID: "a1", Name: "shop"}},
		Type:      events.ContentCreated,
		ID:        "c1",
		SchemaID:  events.NamedID{ID: "s1", Name: "product"},
	}))

	select {
	case got := <-received:
		content, ok := got.(*events.ContentEvent)
		require.True(t, ok)
		assert.Equal(t, "c1", content.ID)
		assert.Equal(t, "ProductCreated", content.EventName())
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWatermillEventBus_RedeliversFailedJobs(t *testing.T) {
	t.Parallel()

	bus := newBus(t)

	var attempts atomic.Int32

	done := make(chan struct{})

	bus.HandleJobs(func(context.Context, *rules.Job) error {
		if attempts.Add(1) == 1 {
			return errors.New("temporary failure")
		}

		close(done)

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))
	require.NoError(t, bus.PublishJob(ctx, &rules.Job{ID: "j1"}))

	select {
	case <-done:
		assert.Equal(t, int32(2), attempts.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("job not redelivered")
	}
}

func TestWatermillEventBus_SubscribeWithoutHandlers(t *testing.T) {
	t.Parallel()

	err := newBus(t).Subscribe(context.Background())
	require.ErrorIs(t, err, eventbus.ErrNoHandlers)
}
