package fixture

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/batfeed/libs/oracle"
)

// Seed writes a small sample calendar: rooms tracked for availability,
// parking spaces priced per day, and a few events starting on day.
func Seed(ctx context.Context, s *Store, day time.Time) error {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	eventTypes := []oracle.EventType{
		{ID: "availability", Label: "Availability", FixedStates: true, States: []oracle.State{
			{ID: 1, MachineName: "available", Label: "Available", Color: "#8BA175"},
			{ID: 2, MachineName: "not_available", Label: "Not available", Color: "#CC2727", Blocking: true},
			{ID: 3, MachineName: "booked", Label: "Booked", CalendarLabel: "Booked", Color: "#3788d8", Blocking: true},
			{ID: 4, MachineName: "cleaning", Label: "Cleaning", Color: "#AAAAAA"},
		}},
		{ID: "pricing", Label: "Pricing"},
	}
	unitTypes := []oracle.UnitType{
		{ID: "room", Label: "Room", DefaultValues: map[string]int64{"availability": 1}},
		{ID: "parking", Label: "Parking", DefaultValues: map[string]int64{"availability": 1, "pricing": 15}},
	}
	units := []oracle.Unit{
		{ID: "1", Name: "Room 1", TypeID: "room"},
		{ID: "2", Name: "Room 2", TypeID: "room"},
		{ID: "10", Name: "Space A", TypeID: "parking"},
	}
	events := []oracle.Event{
		{ID: "evt-1", UnitID: "1", TypeID: "availability", Start: day.Add(10 * time.Hour), End: day.Add(14 * time.Hour), Value: 3},
		{ID: "evt-2", UnitID: "2", TypeID: "availability", Start: day.Add(14 * time.Hour), End: day.Add(15 * time.Hour), Value: 4},
		{ID: "evt-3", UnitID: "10", TypeID: "pricing", Start: day, End: day.Add(48 * time.Hour), Value: 20},
	}

	for _, t := range eventTypes {
		if err := s.PutEventType(ctx, t); err != nil {
			return err
		}
	}
	for _, t := range unitTypes {
		if err := s.PutUnitType(ctx, t); err != nil {
			return err
		}
	}
	for _, u := range units {
		if err := s.PutUnit(ctx, u); err != nil {
			return err
		}
	}
	for _, ev := range events {
		if err := s.PutEvent(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
