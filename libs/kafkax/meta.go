package kafkax

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventMeta is the metadata carried on calendar event messages.
type EventMeta struct {
	EventID    string
	EventType  string
	OccurredAt time.Time
}

// ExtractEventMeta reads event_id / event_type / occurred_at headers, falling
// back to the message key, topic and broker timestamp.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	eventID := HeaderValue(msg.Headers, "event_id")
	eventType := HeaderValue(msg.Headers, "event_type")
	if eventID == "" {
		eventID = string(msg.Key)
	}
	if eventType == "" {
		eventType = msg.Topic
	}
	occurredAt := msg.Time
	if raw := HeaderValue(msg.Headers, "occurred_at"); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			occurredAt = t
		}
	}
	return EventMeta{EventID: eventID, EventType: eventType, OccurredAt: occurredAt}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
