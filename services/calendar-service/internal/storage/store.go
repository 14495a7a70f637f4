package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/batfeed/libs/db"
	"github.com/md-rashed-zaman/batfeed/libs/oracle"
)

//go:embed schema.sql
var schema string

// Store is the Postgres-backed oracle. Unit state is computed per query
// from the stored events, so MatchQuery.Reset has nothing to rebuild.
type Store struct {
	pool *db.Pool
}

func NewStore(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the tables the store and the inbox use.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) ListUnitTypes(ctx context.Context) ([]oracle.UnitType, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.label, d.event_type_id, d.value
		FROM unit_types t
		LEFT JOIN unit_type_defaults d ON d.unit_type_id = t.id
		ORDER BY t.id, d.event_type_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []oracle.UnitType
	for rows.Next() {
		var (
			id, label string
			eventType *string
			value     *int64
		)
		if err := rows.Scan(&id, &label, &eventType, &value); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, oracle.UnitType{ID: id, Label: label, DefaultValues: map[string]int64{}})
		}
		if eventType != nil && value != nil {
			out[len(out)-1].DefaultValues[*eventType] = *value
		}
	}
	return out, rows.Err()
}

func (s *Store) ListUnits(ctx context.Context, unitType string, ids []string) ([]oracle.Unit, error) {
	if len(ids) == 0 {
		ids = nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, type_id
		FROM units
		WHERE type_id = $1 AND ($2::text[] IS NULL OR id = ANY($2))
		ORDER BY id
	`, unitType, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []oracle.Unit
	for rows.Next() {
		var u oracle.Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.TypeID); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) DefaultValue(ctx context.Context, unitType, eventType string) (int64, error) {
	var v int64
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM unit_type_defaults WHERE unit_type_id = $1 AND event_type_id = $2
	`, unitType, eventType).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("default value for %q/%q: %w", unitType, eventType, oracle.ErrNotFound)
	}
	return v, err
}

func (s *Store) EventType(ctx context.Context, id string) (oracle.EventType, error) {
	types, err := s.eventTypes(ctx, &id)
	if err != nil {
		return oracle.EventType{}, err
	}
	if len(types) == 0 {
		return oracle.EventType{}, fmt.Errorf("event type %q: %w", id, oracle.ErrNotFound)
	}
	return types[0], nil
}

func (s *Store) ListEventTypes(ctx context.Context) ([]oracle.EventType, error) {
	return s.eventTypes(ctx, nil)
}

func (s *Store) eventTypes(ctx context.Context, id *string) ([]oracle.EventType, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.label, t.fixed_states,
		       s.id, s.machine_name, s.label, s.calendar_label, s.color, s.blocking
		FROM event_types t
		LEFT JOIN event_states s ON s.event_type_id = t.id
		WHERE $1::text IS NULL OR t.id = $1
		ORDER BY t.id, s.id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []oracle.EventType
	for rows.Next() {
		var (
			t        oracle.EventType
			stateID  *int64
			machine  *string
			label    *string
			calLabel *string
			color    *string
			blocking *bool
		)
		if err := rows.Scan(&t.ID, &t.Label, &t.FixedStates, &stateID, &machine, &label, &calLabel, &color, &blocking); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].ID != t.ID {
			out = append(out, t)
		}
		if stateID != nil {
			last := &out[len(out)-1]
			last.States = append(last.States, oracle.State{
				ID:            *stateID,
				MachineName:   *machine,
				Label:         *label,
				CalendarLabel: *calLabel,
				Color:         *color,
				Blocking:      *blocking,
			})
		}
	}
	return out, rows.Err()
}

func (s *Store) Events(ctx context.Context, eventType string, units []oracle.Unit, start, end time.Time) (map[string][]oracle.Event, error) {
	out := map[string][]oracle.Event{}
	if len(units) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, unit_id, type_id, start_at, end_at, value
		FROM calendar_events
		WHERE type_id = $1 AND unit_id = ANY($2) AND start_at < $4 AND end_at > $3
		ORDER BY unit_id, start_at, id
	`, eventType, ids, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ev oracle.Event
		if err := rows.Scan(&ev.ID, &ev.UnitID, &ev.TypeID, &ev.Start, &ev.End, &ev.Value); err != nil {
			return nil, err
		}
		out[ev.UnitID] = append(out[ev.UnitID], ev)
	}
	return out, rows.Err()
}

func (s *Store) MatchingUnits(ctx context.Context, eventType string, units []oracle.Unit, q oracle.MatchQuery) (oracle.MatchingResult, error) {
	byUnit, err := s.Events(ctx, eventType, units, q.Start, q.End.Add(time.Minute))
	if err != nil {
		return oracle.MatchingResult{}, err
	}
	return oracle.Match(units, byUnit, q), nil
}

// UpsertEvent stores ev, assigning an id when it has none, and returns the id.
func (s *Store) UpsertEvent(ctx context.Context, ev oracle.Event) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO calendar_events (id, unit_id, type_id, start_at, end_at, value)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			unit_id = EXCLUDED.unit_id,
			type_id = EXCLUDED.type_id,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			value = EXCLUDED.value,
			updated_at = now()
	`, ev.ID, ev.UnitID, ev.TypeID, ev.Start, ev.End, ev.Value)
	if err != nil {
		return "", err
	}
	return ev.ID, nil
}

// DeleteEvent removes an event. Deleting a missing event is not an error.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM calendar_events WHERE id = $1`, id)
	return err
}

var _ oracle.Oracle = (*Store)(nil)
