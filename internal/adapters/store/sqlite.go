// Package store persists orchestrator snapshots in SQLite so allocations and
// registrations survive a restart of the orchestrator itself.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aurora-nexus/portward/internal/domain/port"
	"github.com/aurora-nexus/portward/internal/domain/service"
	"github.com/aurora-nexus/portward/internal/ports"
)

// Compile-time interface check.
var _ ports.SnapshotStore = (*SQLiteStore)(nil)

// SQLiteStore is a snapshot store backed by a single SQLite database file.
// Save replaces the whole snapshot transactionally; readers of a half-written
// snapshot are impossible by construction.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates the database file (and parent directory) if needed and runs
// the schema migration.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS port_records (
			number              INTEGER PRIMARY KEY,
			state               TEXT    NOT NULL,
			owner               TEXT    NOT NULL DEFAULT '',
			pool                TEXT    NOT NULL,
			allocated_at        TEXT,
			last_seen_active_at TEXT
		);

		CREATE TABLE IF NOT EXISTS service_records (
			name          TEXT PRIMARY KEY,
			category      TEXT    NOT NULL,
			dependencies  TEXT    NOT NULL DEFAULT '[]',
			assigned_port INTEGER NOT NULL DEFAULT 0,
			restart_count INTEGER NOT NULL DEFAULT 0,
			last_restart_at TEXT,
			registered_at TEXT    NOT NULL,
			position      INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_port_pool  ON port_records(pool);
		CREATE INDEX IF NOT EXISTS idx_port_state ON port_records(state);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save atomically replaces the persisted snapshot.
func (s *SQLiteStore) Save(ctx context.Context, snap ports.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM port_records`); err != nil {
		return fmt.Errorf("store: clear ports: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM service_records`); err != nil {
		return fmt.Errorf("store: clear services: %w", err)
	}

	for _, rec := range snap.Ports {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO port_records (number, state, owner, pool, allocated_at, last_seen_active_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.Number, rec.State.String(), rec.Owner, rec.Pool,
			nullableTime(rec.AllocatedAt), nullableTime(rec.LastSeenActiveAt),
		)
		if err != nil {
			return fmt.Errorf("store: insert port %d: %w", rec.Number, err)
		}
	}

	for i, desc := range snap.Services {
		deps, err := json.Marshal(desc.Dependencies)
		if err != nil {
			return fmt.Errorf("store: marshal dependencies for %s: %w", desc.Name, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO service_records (name, category, dependencies, assigned_port, restart_count, last_restart_at, registered_at, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			desc.Name, desc.Category, string(deps), desc.AssignedPort,
			desc.RestartCount, nullableTime(desc.LastRestartAt),
			desc.RegisteredAt.Format(time.RFC3339Nano), i,
		)
		if err != nil {
			return fmt.Errorf("store: insert service %s: %w", desc.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Load returns the persisted snapshot. Services come back in their original
// registration order with health reset to UNKNOWN; fresh probes decide the
// rest.
func (s *SQLiteStore) Load(ctx context.Context) (ports.Snapshot, error) {
	var snap ports.Snapshot

	rows, err := s.db.QueryContext(ctx,
		`SELECT number, state, owner, pool, allocated_at, last_seen_active_at
		 FROM port_records ORDER BY number`,
	)
	if err != nil {
		return snap, fmt.Errorf("store: query ports: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec       port.Record
			state     string
			allocated sql.NullString
			lastSeen  sql.NullString
		)
		if err := rows.Scan(&rec.Number, &state, &rec.Owner, &rec.Pool, &allocated, &lastSeen); err != nil {
			return snap, fmt.Errorf("store: scan port: %w", err)
		}
		rec.State = port.State(state)
		if rec.AllocatedAt, err = parseTime(allocated); err != nil {
			return snap, fmt.Errorf("store: port %d allocated_at: %w", rec.Number, err)
		}
		if rec.LastSeenActiveAt, err = parseTime(lastSeen); err != nil {
			return snap, fmt.Errorf("store: port %d last_seen_active_at: %w", rec.Number, err)
		}
		snap.Ports = append(snap.Ports, rec)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	svcRows, err := s.db.QueryContext(ctx,
		`SELECT name, category, dependencies, assigned_port, restart_count, last_restart_at, registered_at
		 FROM service_records ORDER BY position`,
	)
	if err != nil {
		return snap, fmt.Errorf("store: query services: %w", err)
	}
	defer svcRows.Close()

	for svcRows.Next() {
		var (
			desc        service.Descriptor
			deps        string
			lastRestart sql.NullString
			registered  string
		)
		if err := svcRows.Scan(&desc.Name, &desc.Category, &deps, &desc.AssignedPort,
			&desc.RestartCount, &lastRestart, &registered); err != nil {
			return snap, fmt.Errorf("store: scan service: %w", err)
		}
		if err := json.Unmarshal([]byte(deps), &desc.Dependencies); err != nil {
			return snap, fmt.Errorf("store: dependencies for %s: %w", desc.Name, err)
		}
		if desc.LastRestartAt, err = parseTime(lastRestart); err != nil {
			return snap, fmt.Errorf("store: service %s last_restart_at: %w", desc.Name, err)
		}
		if desc.RegisteredAt, err = time.Parse(time.RFC3339Nano, registered); err != nil {
			return snap, fmt.Errorf("store: service %s registered_at: %w", desc.Name, err)
		}
		desc.Health = service.HealthUnknown
		snap.Services = append(snap.Services, desc)
	}
	return snap, svcRows.Err()
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Name identifies the store in the readiness registry.
func (s *SQLiteStore) Name() string {
	return "snapshot-store"
}

// HealthCheck pings the database handle.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(v sql.NullString) (time.Time, error) {
	if !v.Valid || v.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v.String)
}
