// Package fixture keeps an oracle data set in a SQLite file so feeds can be
// built offline by feedctl.
package fixture

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/batfeed/libs/oracle"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS unit_types (
	id TEXT PRIMARY KEY,
	label TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS unit_type_defaults (
	unit_type_id TEXT NOT NULL REFERENCES unit_types(id),
	event_type_id TEXT NOT NULL,
	value INTEGER NOT NULL,
	PRIMARY KEY (unit_type_id, event_type_id)
);
CREATE TABLE IF NOT EXISTS units (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type_id TEXT NOT NULL REFERENCES unit_types(id)
);
CREATE TABLE IF NOT EXISTS event_types (
	id TEXT PRIMARY KEY,
	label TEXT NOT NULL,
	fixed_states INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS states (
	event_type_id TEXT NOT NULL REFERENCES event_types(id),
	id INTEGER NOT NULL,
	machine_name TEXT NOT NULL,
	label TEXT NOT NULL,
	calendar_label TEXT NOT NULL DEFAULT '',
	color TEXT NOT NULL DEFAULT '',
	blocking INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (event_type_id, id)
);
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	unit_id TEXT NOT NULL REFERENCES units(id),
	type_id TEXT NOT NULL REFERENCES event_types(id),
	start_at TEXT NOT NULL,
	end_at TEXT NOT NULL,
	value INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_unit ON events(type_id, unit_id, start_at);
`

// Store is a fixture file. Safe for use by one command at a time.
type Store struct {
	db *sql.DB
}

// Open opens (creating when missing) the fixture at path and ensures the schema.
func Open(path string) (*Store, error) {
	connStr := path
	if path == ":memory:" {
		connStr = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) PutUnitType(ctx context.Context, t oracle.UnitType) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO unit_types (id, label) VALUES (?, ?)`, t.ID, t.Label); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM unit_type_defaults WHERE unit_type_id = ?`, t.ID); err != nil {
			return err
		}
		for eventType, v := range t.DefaultValues {
			if _, err := tx.ExecContext(ctx, `INSERT INTO unit_type_defaults (unit_type_id, event_type_id, value) VALUES (?, ?, ?)`, t.ID, eventType, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) PutUnit(ctx context.Context, u oracle.Unit) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO units (id, name, type_id) VALUES (?, ?, ?)`, u.ID, u.Name, u.TypeID)
	return err
}

func (s *Store) PutEventType(ctx context.Context, t oracle.EventType) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO event_types (id, label, fixed_states) VALUES (?, ?, ?)`, t.ID, t.Label, t.FixedStates); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM states WHERE event_type_id = ?`, t.ID); err != nil {
			return err
		}
		for _, st := range t.States {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO states (event_type_id, id, machine_name, label, calendar_label, color, blocking)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, t.ID, st.ID, st.MachineName, st.Label, st.CalendarLabel, st.Color, st.Blocking); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) PutEvent(ctx context.Context, ev oracle.Event) error {
	if !ev.End.After(ev.Start) {
		return fmt.Errorf("event %s: end must be after start", ev.ID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO events (id, unit_id, type_id, start_at, end_at, value)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.UnitID, ev.TypeID, ev.Start.UTC().Format(time.RFC3339), ev.End.UTC().Format(time.RFC3339), ev.Value)
	return err
}

// Load reads the whole fixture into an in-memory oracle.
func (s *Store) Load(ctx context.Context) (*oracle.MemoryStore, error) {
	mem := oracle.NewMemoryStore()

	unitTypes := map[string]*oracle.UnitType{}
	if err := s.each(ctx, `SELECT id, label FROM unit_types`, func(rows *sql.Rows) error {
		var t oracle.UnitType
		if err := rows.Scan(&t.ID, &t.Label); err != nil {
			return err
		}
		t.DefaultValues = map[string]int64{}
		unitTypes[t.ID] = &t
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load unit types: %w", err)
	}
	if err := s.each(ctx, `SELECT unit_type_id, event_type_id, value FROM unit_type_defaults`, func(rows *sql.Rows) error {
		var unitType, eventType string
		var v int64
		if err := rows.Scan(&unitType, &eventType, &v); err != nil {
			return err
		}
		if t, ok := unitTypes[unitType]; ok {
			t.DefaultValues[eventType] = v
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	for _, t := range unitTypes {
		mem.PutUnitType(*t)
	}

	if err := s.each(ctx, `SELECT id, name, type_id FROM units`, func(rows *sql.Rows) error {
		var u oracle.Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.TypeID); err != nil {
			return err
		}
		mem.PutUnit(u)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load units: %w", err)
	}

	eventTypes := map[string]*oracle.EventType{}
	if err := s.each(ctx, `SELECT id, label, fixed_states FROM event_types`, func(rows *sql.Rows) error {
		var t oracle.EventType
		if err := rows.Scan(&t.ID, &t.Label, &t.FixedStates); err != nil {
			return err
		}
		eventTypes[t.ID] = &t
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load event types: %w", err)
	}
	if err := s.each(ctx, `
		SELECT event_type_id, id, machine_name, label, calendar_label, color, blocking
		FROM states ORDER BY event_type_id, id
	`, func(rows *sql.Rows) error {
		var eventType string
		var st oracle.State
		if err := rows.Scan(&eventType, &st.ID, &st.MachineName, &st.Label, &st.CalendarLabel, &st.Color, &st.Blocking); err != nil {
			return err
		}
		if t, ok := eventTypes[eventType]; ok {
			t.States = append(t.States, st)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load states: %w", err)
	}
	for _, t := range eventTypes {
		mem.PutEventType(*t)
	}

	if err := s.each(ctx, `SELECT id, unit_id, type_id, start_at, end_at, value FROM events`, func(rows *sql.Rows) error {
		var ev oracle.Event
		var start, end string
		if err := rows.Scan(&ev.ID, &ev.UnitID, &ev.TypeID, &start, &end, &ev.Value); err != nil {
			return err
		}
		var err error
		if ev.Start, err = time.Parse(time.RFC3339, start); err != nil {
			return fmt.Errorf("event %s start: %w", ev.ID, err)
		}
		if ev.End, err = time.Parse(time.RFC3339, end); err != nil {
			return fmt.Errorf("event %s end: %w", ev.ID, err)
		}
		return mem.PutEvent(ev)
	}); err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return mem, nil
}

func (s *Store) each(ctx context.Context, query string, fn func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
