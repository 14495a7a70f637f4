package oracle

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStorePutEventValidates(t *testing.T) {
	s := NewMemoryStore()
	if err := s.PutEvent(Event{ID: "e1", UnitID: "1"}); err == nil {
		t.Fatalf("expected error for missing type id")
	}
	if err := s.PutEvent(Event{ID: "e1", UnitID: "1", TypeID: "availability", Start: at(2, 10, 0), End: at(2, 10, 0)}); err == nil {
		t.Fatalf("expected error for empty interval")
	}
}

func TestMemoryStoreEventsAreScopedAndOrdered(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	if err := s.PutEvent(Event{ID: "e0", UnitID: "1", TypeID: "availability", Start: at(2, 6, 0), End: at(2, 8, 0), Value: stateOccupied}); err != nil {
		t.Fatalf("put event: %v", err)
	}
	if err := s.PutEvent(Event{ID: "other", UnitID: "1", TypeID: "pricing", Start: at(2, 6, 0), End: at(2, 8, 0), Value: 90}); err != nil {
		t.Fatalf("put event: %v", err)
	}

	units, _ := s.ListUnits(ctx, "room", []string{"1"})
	events, err := s.Events(ctx, "availability", units, at(2, 0, 0), at(3, 0, 0))
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	got := events["1"]
	if len(got) != 2 || got[0].ID != "e0" || got[1].ID != "e1" {
		t.Fatalf("expected [e0 e1], got %+v", got)
	}

	s.DeleteEvent("e0")
	events, _ = s.Events(ctx, "availability", units, at(2, 0, 0), at(2, 9, 0))
	if len(events["1"]) != 0 {
		t.Fatalf("expected no events after delete, got %+v", events["1"])
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	if _, err := s.EventType(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.DefaultValue(ctx, "desk", "availability"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	v, err := s.DefaultValue(ctx, "room", "availability")
	if err != nil || v != stateAvailable {
		t.Fatalf("expected default %d, got %d (%v)", stateAvailable, v, err)
	}
}
