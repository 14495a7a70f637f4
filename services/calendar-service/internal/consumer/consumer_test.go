package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
)

type memInbox struct {
	seen      map[string]bool
	forgotten []string
}

func (m *memInbox) Record(_ context.Context, eventID, _ string) (bool, error) {
	if m.seen[eventID] {
		return false, nil
	}
	m.seen[eventID] = true
	return true, nil
}

func (m *memInbox) Forget(_ context.Context, eventID string) error {
	delete(m.seen, eventID)
	m.forgotten = append(m.forgotten, eventID)
	return nil
}

func message(id string) kafka.Message {
	return kafka.Message{
		Topic:   "calendar.event.deleted.v1",
		Headers: []kafka.Header{{Key: "event_id", Value: []byte(id)}},
	}
}

func TestProcessDeduplicates(t *testing.T) {
	inbox := &memInbox{seen: map[string]bool{}}
	calls := 0
	c := &Consumer{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		inbox:  inbox,
		handler: func(context.Context, kafka.Message) error {
			calls++
			return nil
		},
	}

	c.Process(context.Background(), message("a"))
	c.Process(context.Background(), message("a"))
	c.Process(context.Background(), message("b"))
	if calls != 2 {
		t.Fatalf("expected 2 handler calls, got %d", calls)
	}
}

func TestProcessForgetsFailedEvents(t *testing.T) {
	inbox := &memInbox{seen: map[string]bool{}}
	fail := true
	calls := 0
	c := &Consumer{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		inbox:  inbox,
		handler: func(context.Context, kafka.Message) error {
			calls++
			if fail {
				return errors.New("db down")
			}
			return nil
		},
	}

	c.Process(context.Background(), message("a"))
	if len(inbox.forgotten) != 1 {
		t.Fatalf("failed event should be forgotten")
	}
	fail = false
	c.Process(context.Background(), message("a"))
	if calls != 2 {
		t.Fatalf("redelivery should reach the handler, got %d calls", calls)
	}
}
