// Package history persists the build record. Every build appends events to
// an append-only SQLite table; a projection folds them into the summaries
// the admin API and the scheduler's change detection read.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Event is one row of the build_events table.
type Event struct {
	ID        int64
	BuildID   string
	Project   string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Store is the SQLite-backed event log. Use ":memory:" for tests.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	insert  *sql.Stmt
	byBuild *sql.Stmt
	recent  *sql.Stmt
	inRange *sql.Stmt
}

// NewStore opens (creating if needed) the history database at path and
// prepares the hot statements.
func NewStore(path string) (*Store, error) {
	if path != inMemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	if err := s.prepare(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare history statements: %w", err)
	}
	return s, nil
}

const inMemoryPath = ":memory:"

func (s *Store) initialize() error {
	schema := `
	PRAGMA journal_mode=WAL;
	PRAGMA busy_timeout=5000;
	CREATE TABLE IF NOT EXISTS build_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		project TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload BLOB,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_build_events_build_id ON build_events(build_id);
	CREATE INDEX IF NOT EXISTS idx_build_events_project ON build_events(project, id);
	CREATE INDEX IF NOT EXISTS idx_build_events_created ON build_events(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) prepare() error {
	var err error
	if s.insert, err = s.db.Prepare(
		"INSERT INTO build_events (build_id, project, event_type, payload, created_at) VALUES (?, ?, ?, ?, ?)",
	); err != nil {
		return err
	}
	if s.byBuild, err = s.db.Prepare(
		"SELECT id, build_id, project, event_type, payload, created_at FROM build_events WHERE build_id = ? ORDER BY id",
	); err != nil {
		return err
	}
	if s.recent, err = s.db.Prepare(
		"SELECT id, build_id, project, event_type, payload, created_at FROM build_events ORDER BY id DESC LIMIT ?",
	); err != nil {
		return err
	}
	if s.inRange, err = s.db.Prepare(
		"SELECT id, build_id, project, event_type, payload, created_at FROM build_events WHERE created_at >= ? AND created_at <= ? ORDER BY id",
	); err != nil {
		return err
	}
	return nil
}

// Append writes one event. The event's ID and CreatedAt are assigned here.
func (s *Store) Append(ctx context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.BuildID == "" || e.Type == "" {
		return fmt.Errorf("history event needs a build id and type")
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.insert.ExecContext(ctx, e.BuildID, e.Project, e.Type, e.Payload, created.Unix())
	if err != nil {
		return fmt.Errorf("append history event: %w", err)
	}
	return nil
}

// GetByBuildID returns all events of one build in append order.
func (s *Store) GetByBuildID(ctx context.Context, buildID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.byBuild.QueryContext(ctx, buildID)
	if err != nil {
		return nil, fmt.Errorf("query build events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Recent returns the latest events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.recent.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetRange returns events between start and end in append order. The
// projection replays this at startup.
func (s *Store) GetRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.inRange.QueryContext(ctx, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("query event range: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Prune deletes events created before cutoff and reports how many rows went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM build_events WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return n, nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		var createdUnix int64
		if err := rows.Scan(&e.ID, &e.BuildID, &e.Project, &e.Type, &e.Payload, &createdUnix); err != nil {
			return nil, fmt.Errorf("scan history event: %w", err)
		}
		e.CreatedAt = time.Unix(createdUnix, 0)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history events: %w", err)
	}
	return events, nil
}

// Close releases the prepared statements and the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range []*sql.Stmt{s.insert, s.byBuild, s.recent, s.inRange} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	return s.db.Close()
}
