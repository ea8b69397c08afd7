package dataset

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a stem or run is not in the store
var ErrNotFound = errors.New("dataset: not found")

// Run is one generation pass over an annotation directory
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is in progress
	Difficulty float64
	Accepted   int
	Skipped    int
	Failed     int
}

// Store is a sqlite-backed collection of encoded records
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path and brings its schema
// up to date.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Writers from several generator workers queue on one connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m is not closed: that would close the underlying DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion reports the applied migration version
func (s *Store) SchemaVersion(ctx context.Context) (uint, error) {
	var v uint
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_migrations LIMIT 1`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun records the start of a generation run with a fresh ID
func (s *Store) BeginRun(ctx context.Context, difficulty float64) (*Run, error) {
	run := &Run{
		ID:         uuid.New().String(),
		StartedAt:  time.Now(),
		Difficulty: difficulty,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, difficulty) VALUES (?, ?, ?)`,
		run.ID, run.StartedAt.UnixNano(), run.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun stores the final counters of run
func (s *Store) FinishRun(ctx context.Context, run *Run) error {
	run.FinishedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, accepted = ?, skipped = ?, failed = ? WHERE id = ?`,
		run.FinishedAt.UnixNano(), run.Accepted, run.Skipped, run.Failed, run.ID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// Runs lists all runs, most recent first
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, difficulty, accepted, skipped, failed
		FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Difficulty, &r.Accepted, &r.Skipped, &r.Failed); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			r.FinishedAt = time.Unix(0, finished.Int64)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Put stores rec under its stem, replacing any earlier version
func (s *Store) Put(ctx context.Context, runID string, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	blob, err := MarshalRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO examples (stem, run_id, difficulty, record, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.Stem, runID, float64(rec.Difficulty), blob, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("insert example %s: %w", rec.Stem, err)
	}
	return nil
}

// Get loads the record stored under stem
func (s *Store) Get(ctx context.Context, stem string) (Record, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM examples WHERE stem = ?`, stem).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("example %s: %w", stem, ErrNotFound)
	}
	if err != nil {
		return Record{}, err
	}
	return UnmarshalRecord(blob)
}

// Count returns the number of stored examples, optionally for one run
func (s *Store) Count(ctx context.Context, runID string) (int, error) {
	var n int
	var err error
	if runID == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM examples`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM examples WHERE run_id = ?`, runID).Scan(&n)
	}
	return n, err
}

// Records opens a lazy iterator over stored records in stem order. An empty
// runID iterates over every run. The reader holds the store's only
// connection until it is closed.
func (s *Store) Records(ctx context.Context, runID string) (*Reader, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if runID == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT record FROM examples ORDER BY stem`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT record FROM examples WHERE run_id = ? ORDER BY stem`, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query examples: %w", err)
	}
	return &Reader{rows: rows}, nil
}
