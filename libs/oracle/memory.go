package oracle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Oracle. feedctl loads fixtures into it and
// tests use it as the reference implementation of the contract.
type MemoryStore struct {
	mu         sync.RWMutex
	unitTypes  map[string]UnitType
	units      map[string]Unit
	eventTypes map[string]EventType
	events     map[string]Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		unitTypes:  map[string]UnitType{},
		units:      map[string]Unit{},
		eventTypes: map[string]EventType{},
		events:     map[string]Event{},
	}
}

func (s *MemoryStore) PutUnitType(t UnitType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unitTypes[t.ID] = t
}

func (s *MemoryStore) PutUnit(u Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[u.ID] = u
}

func (s *MemoryStore) PutEventType(t EventType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventTypes[t.ID] = t
}

func (s *MemoryStore) PutEvent(ev Event) error {
	if ev.ID == "" || ev.UnitID == "" || ev.TypeID == "" {
		return fmt.Errorf("event id, unit id and type id are required")
	}
	if !ev.End.After(ev.Start) {
		return fmt.Errorf("event %s: end must be after start", ev.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = ev
	return nil
}

func (s *MemoryStore) DeleteEvent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, id)
}

func (s *MemoryStore) ListUnitTypes(_ context.Context) ([]UnitType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]UnitType, 0, len(s.unitTypes))
	for _, t := range s.unitTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListUnits(_ context.Context, unitType string, ids []string) ([]Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var filter map[string]struct{}
	if len(ids) > 0 {
		filter = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			filter[id] = struct{}{}
		}
	}
	var out []Unit
	for _, u := range s.units {
		if u.TypeID != unitType {
			continue
		}
		if filter != nil {
			if _, ok := filter[u.ID]; !ok {
				continue
			}
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) DefaultValue(_ context.Context, unitType, eventType string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.unitTypes[unitType]
	if !ok {
		return 0, fmt.Errorf("unit type %q: %w", unitType, ErrNotFound)
	}
	v, ok := t.DefaultValues[eventType]
	if !ok {
		return 0, fmt.Errorf("default value for %q/%q: %w", unitType, eventType, ErrNotFound)
	}
	return v, nil
}

func (s *MemoryStore) EventType(_ context.Context, id string) (EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.eventTypes[id]
	if !ok {
		return EventType{}, fmt.Errorf("event type %q: %w", id, ErrNotFound)
	}
	return t, nil
}

func (s *MemoryStore) ListEventTypes(_ context.Context) ([]EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EventType, 0, len(s.eventTypes))
	for _, t := range s.eventTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Events(_ context.Context, eventType string, units []Unit, start, end time.Time) (map[string][]Event, error) {
	return s.eventsByUnit(eventType, units, start, end), nil
}

func (s *MemoryStore) MatchingUnits(_ context.Context, eventType string, units []Unit, q MatchQuery) (MatchingResult, error) {
	byUnit := s.eventsByUnit(eventType, units, q.Start, q.End.Add(time.Minute))
	return Match(units, byUnit, q), nil
}

func (s *MemoryStore) eventsByUnit(eventType string, units []Unit, start, end time.Time) map[string][]Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]struct{}, len(units))
	for _, u := range units {
		wanted[u.ID] = struct{}{}
	}
	out := map[string][]Event{}
	for _, ev := range s.events {
		if ev.TypeID != eventType {
			continue
		}
		if _, ok := wanted[ev.UnitID]; !ok {
			continue
		}
		if ev.Overlaps(start, end) {
			out[ev.UnitID] = append(out[ev.UnitID], ev)
		}
	}
	for id := range out {
		evs := out[id]
		sort.Slice(evs, func(i, j int) bool {
			if evs[i].Start.Equal(evs[j].Start) {
				return evs[i].ID < evs[j].ID
			}
			return evs[i].Start.Before(evs[j].Start)
		})
	}
	return out
}

var _ Oracle = (*MemoryStore)(nil)
