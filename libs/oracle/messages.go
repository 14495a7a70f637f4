package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/batfeed/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

// Calendar event topics. The calendar service applies them to its store.
const (
	TopicEventUpserted = "calendar.event.upserted.v1"
	TopicEventDeleted  = "calendar.event.deleted.v1"
)

// EventUpserted creates or replaces a stored event. An empty EventID asks
// the store to assign one.
type EventUpserted struct {
	EventID   string    `json:"event_id,omitempty"`
	UnitID    string    `json:"unit_id"`
	EventType string    `json:"event_type"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Value     int64     `json:"value"`
}

func (e EventUpserted) Validate() error {
	if e.UnitID == "" || e.EventType == "" {
		return fmt.Errorf("unit_id and event_type are required")
	}
	if !e.End.After(e.Start) {
		return fmt.Errorf("end must be after start")
	}
	return nil
}

func (e EventUpserted) Event(id string) Event {
	return Event{ID: id, UnitID: e.UnitID, TypeID: e.EventType, Start: e.Start, End: e.End, Value: e.Value}
}

type EventDeleted struct {
	EventID string `json:"event_id"`
}

// NewMessage wraps payload for topic with a fresh event_id, the
// occurred_at header and the trace context of ctx. Messages about the
// same calendar event share key so they stay ordered.
func NewMessage(ctx context.Context, topic, key string, payload any) (kafka.Message, error) {
	value, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, err
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte(topic)},
			{Key: "occurred_at", Value: []byte(time.Now().UTC().Format(time.RFC3339Nano))},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(ctx, msg.Headers)
	return msg, nil
}
