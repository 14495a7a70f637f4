package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/batfeed/libs/oracle"
	"github.com/segmentio/kafka-go"
)

type fakeStore struct {
	upserted []oracle.Event
	deleted  []string
	err      error
}

func (s *fakeStore) UpsertEvent(_ context.Context, ev oracle.Event) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.upserted = append(s.upserted, ev)
	if ev.ID == "" {
		return "generated", nil
	}
	return ev.ID, nil
}

func (s *fakeStore) DeleteEvent(_ context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func newHandler(store Store) *Handler {
	return NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustMessage(t *testing.T, topic string, payload any) kafka.Message {
	t.Helper()
	msg, err := oracle.NewMessage(context.Background(), topic, "k", payload)
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	return msg
}

func TestHandleUpsert(t *testing.T) {
	store := &fakeStore{}
	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	msg := mustMessage(t, oracle.TopicEventUpserted, oracle.EventUpserted{
		EventID: "evt-1", UnitID: "1", EventType: "availability",
		Start: start, End: start.Add(4 * time.Hour), Value: 3,
	})

	if err := newHandler(store).Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.upserted) != 1 {
		t.Fatalf("expected one upsert, got %d", len(store.upserted))
	}
	ev := store.upserted[0]
	if ev.ID != "evt-1" || ev.UnitID != "1" || ev.TypeID != "availability" || ev.Value != 3 || !ev.End.Equal(start.Add(4*time.Hour)) {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestHandleDropsInvalidPayloads(t *testing.T) {
	store := &fakeStore{}
	h := newHandler(store)
	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	msgs := []kafka.Message{
		{Topic: oracle.TopicEventUpserted, Value: []byte("{")},
		mustMessage(t, oracle.TopicEventUpserted, oracle.EventUpserted{UnitID: "1", EventType: "availability", Start: start, End: start}),
		mustMessage(t, oracle.TopicEventDeleted, oracle.EventDeleted{}),
		{Topic: "other.topic", Value: []byte("{}")},
	}
	for _, msg := range msgs {
		if err := h.Handle(context.Background(), msg); err != nil {
			t.Fatalf("invalid payload on %s should be dropped, got %v", msg.Topic, err)
		}
	}
	if len(store.upserted) != 0 || len(store.deleted) != 0 {
		t.Fatalf("store should be untouched: %+v", store)
	}
}

func TestHandleDelete(t *testing.T) {
	store := &fakeStore{}
	msg := mustMessage(t, oracle.TopicEventDeleted, oracle.EventDeleted{EventID: "evt-1"})
	if err := newHandler(store).Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "evt-1" {
		t.Fatalf("unexpected deletes: %v", store.deleted)
	}
}

func TestHandleReturnsStoreErrors(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	msg := mustMessage(t, oracle.TopicEventDeleted, oracle.EventDeleted{EventID: "evt-1"})
	if err := newHandler(store).Handle(context.Background(), msg); err == nil {
		t.Fatalf("expected store error")
	}
}
