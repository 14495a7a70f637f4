// Package events applies calendar event messages to the event store.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/batfeed/libs/oracle"
	"github.com/segmentio/kafka-go"
)

type Store interface {
	UpsertEvent(ctx context.Context, ev oracle.Event) (string, error)
	DeleteEvent(ctx context.Context, id string) error
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Handle dispatches on the message topic. Malformed payloads are logged and
// dropped; only store failures are returned so the message can be retried.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case oracle.TopicEventUpserted:
		var payload oracle.EventUpserted
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			h.logger.Error("invalid event upsert", "err", err)
			return nil
		}
		if err := payload.Validate(); err != nil {
			h.logger.Error("invalid event upsert", "err", err, "event_id", payload.EventID)
			return nil
		}
		id, err := h.store.UpsertEvent(ctx, payload.Event(payload.EventID))
		if err != nil {
			return fmt.Errorf("upsert event: %w", err)
		}
		h.logger.Info("event stored", "event_id", id, "unit_id", payload.UnitID, "event_type", payload.EventType)
		return nil
	case oracle.TopicEventDeleted:
		var payload oracle.EventDeleted
		if err := json.Unmarshal(msg.Value, &payload); err != nil || payload.EventID == "" {
			h.logger.Error("invalid event delete", "err", err)
			return nil
		}
		if err := h.store.DeleteEvent(ctx, payload.EventID); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		h.logger.Info("event deleted", "event_id", payload.EventID)
		return nil
	default:
		h.logger.Warn("unexpected topic", "topic", msg.Topic)
		return nil
	}
}
