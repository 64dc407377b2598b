package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/salon-pos/internal/events"
)

type stubStore struct {
	lastTopic   string
	lastPayload []byte
	insertErr   error
}

func (s *stubStore) InsertEvent(_ context.Context, topic, aggregateID string, payload []byte) (events.Event, error) {
	if s.insertErr != nil {
		return events.Event{}, s.insertErr
	}
	s.lastTopic = topic
	s.lastPayload = payload
	return events.Event{
		ID:          uuid.NewString(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}, nil
}

type captureScheduler struct {
	events []events.Event
	err    error
}

func (c *captureScheduler) Schedule(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsAndFansOut(t *testing.T) {
	store := &stubStore{}
	scheduler := &captureScheduler{}
	notifier := &captureNotifier{}
	bus := events.Bus{Store: store, Scheduler: scheduler, Notifiers: []events.Notifier{notifier}}

	ev, err := bus.Emit(context.Background(), events.TopicBillCreated, "bill-1", map[string]any{"receiptNumber": "R-001"})
	require.NoError(t, err)
	require.Equal(t, events.TopicBillCreated, store.lastTopic)
	require.JSONEq(t, `{"receiptNumber":"R-001"}`, string(store.lastPayload))
	require.Len(t, scheduler.events, 1)
	require.Len(t, notifier.events, 1)
	require.Equal(t, ev.ID, scheduler.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(ev.Payload, &decoded))
	require.Equal(t, "R-001", decoded["receiptNumber"])
}

func TestEmitRequiresTopicAndAggregate(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), "  ", "bill-1", nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicBillCreated, "", nil)
	require.Error(t, err)
}

func TestEmitStoreFailureAbortsFanOut(t *testing.T) {
	scheduler := &captureScheduler{}
	bus := events.Bus{
		Store:     &stubStore{insertErr: errors.New("db down")},
		Scheduler: scheduler,
	}
	_, err := bus.Emit(context.Background(), events.TopicBillCreated, "bill-1", nil)
	require.Error(t, err)
	require.Empty(t, scheduler.events)
}

func TestEmitSchedulerFailureStillReturnsEvent(t *testing.T) {
	scheduler := &captureScheduler{err: errors.New("queue full")}
	bus := events.Bus{Store: &stubStore{}, Scheduler: scheduler}

	ev, err := bus.Emit(context.Background(), events.TopicBillCreated, "bill-1", nil)
	require.Error(t, err)
	require.NotEmpty(t, ev.ID)
}

func TestEmitRejectsInvalidJSONPayload(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), events.TopicBillCreated, "bill-1", []byte("{nope"))
	require.Error(t, err)
}
