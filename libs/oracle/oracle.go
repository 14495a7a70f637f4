// Package oracle defines the scheduling oracle the calendar feeds are built
// on: unit and event-type metadata, per-unit event timelines and the
// matching-units query. Implementations live in the calendar service
// (Postgres), in MemoryStore, and behind the gRPC Client.
package oracle

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type UnitType struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// DefaultValues maps event type id to the unit type's default value.
	// A unit type without an entry for an event type is not tracked for it.
	DefaultValues map[string]int64 `json:"default_values,omitempty"`
}

// Unit is an addressable resource. DefaultValue is the state assumed
// wherever no stored event covers the unit.
type Unit struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	TypeID       string `json:"type_id"`
	DefaultValue int64  `json:"default_value"`
}

type State struct {
	ID            int64  `json:"id"`
	MachineName   string `json:"machine_name"`
	Label         string `json:"label"`
	CalendarLabel string `json:"calendar_label,omitempty"`
	Color         string `json:"color,omitempty"`
	Blocking      bool   `json:"blocking"`
}

// EventType identifies a state model. Fixed-state types declare the finite
// set of states an event value may take; open-state values are free numbers.
type EventType struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	FixedStates bool    `json:"fixed_states"`
	States      []State `json:"states,omitempty"`
}

// State looks a fixed state up by its value.
func (t EventType) State(value int64) (State, bool) {
	for _, s := range t.States {
		if s.ID == value {
			return s, true
		}
	}
	return State{}, false
}

// StateByName looks a fixed state up by machine name.
func (t EventType) StateByName(name string) (State, bool) {
	for _, s := range t.States {
		if s.MachineName == name {
			return s, true
		}
	}
	return State{}, false
}

// Event is a stored state over the half-open interval [Start, End).
type Event struct {
	ID     string    `json:"id"`
	UnitID string    `json:"unit_id"`
	TypeID string    `json:"type_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Value  int64     `json:"value"`
}

// Overlaps reports whether the event covers any instant of [start, end).
func (e Event) Overlaps(start, end time.Time) bool {
	return e.Start.Before(end) && e.End.After(start)
}

// MatchQuery asks which units hold only States over [Start, End]. End is
// inclusive at minute granularity, so the covered range is [Start, End+1m).
type MatchQuery struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	States       []int64   `json:"states"`
	ExcludeUnits []string  `json:"exclude_units,omitempty"`
	// Intersect includes a unit when any of its states is valid instead of all.
	Intersect bool `json:"intersect,omitempty"`
	// Reset asks a caching oracle to rebuild unit state before answering.
	// Stores that compute state per query have nothing to reset.
	Reset bool `json:"reset,omitempty"`
}

// MatchingResult maps unit ids to the states observed for them.
type MatchingResult struct {
	Included map[string][]int64 `json:"included"`
	Excluded map[string][]int64 `json:"excluded"`
}

type UnitDirectory interface {
	ListUnitTypes(ctx context.Context) ([]UnitType, error)
	// ListUnits returns the units of unitType, restricted to ids when non-empty.
	ListUnits(ctx context.Context, unitType string, ids []string) ([]Unit, error)
	DefaultValue(ctx context.Context, unitType, eventType string) (int64, error)
}

type EventTypes interface {
	EventType(ctx context.Context, id string) (EventType, error)
	ListEventTypes(ctx context.Context) ([]EventType, error)
}

type Calendar interface {
	// Events returns, per unit id, the stored events overlapping [start, end).
	Events(ctx context.Context, eventType string, units []Unit, start, end time.Time) (map[string][]Event, error)
	MatchingUnits(ctx context.Context, eventType string, units []Unit, q MatchQuery) (MatchingResult, error)
}

type Oracle interface {
	UnitDirectory
	EventTypes
	Calendar
}
