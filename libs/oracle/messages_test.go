package oracle

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/md-rashed-zaman/batfeed/libs/kafkax"
)

func TestNewMessage(t *testing.T) {
	payload := EventUpserted{EventID: "e1", UnitID: "1", EventType: "availability", Start: at(2, 10, 0), End: at(2, 14, 0), Value: stateOccupied}
	msg, err := NewMessage(context.Background(), TopicEventUpserted, payload.EventID, payload)
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID == "" || meta.EventID == "e1" {
		t.Fatalf("expected a generated message id, got %q", meta.EventID)
	}
	if meta.EventType != TopicEventUpserted || meta.OccurredAt.IsZero() {
		t.Fatalf("unexpected meta %+v", meta)
	}

	var got EventUpserted
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.UnitID != "1" || got.Value != stateOccupied || !got.Start.Equal(payload.Start) || !got.End.Equal(payload.End) {
		t.Fatalf("payload changed in transit: %+v", got)
	}
}

func TestEventUpsertedValidate(t *testing.T) {
	bad := []EventUpserted{
		{EventType: "availability", Start: at(2, 10, 0), End: at(2, 11, 0)},
		{UnitID: "1", EventType: "availability", Start: at(2, 10, 0), End: at(2, 10, 0)},
	}
	for _, e := range bad {
		if err := e.Validate(); err == nil {
			t.Fatalf("expected validation error for %+v", e)
		}
	}
}
