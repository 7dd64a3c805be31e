package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const initialMigrationName = "001_initial_schema"

const applicationSQLiteSchema = `
CREATE TABLE IF NOT EXISTS applications (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_applications_created_at
ON applications(created_at, name);`

// SQLiteStoreConfig configures the SQLite application store.
type SQLiteStoreConfig struct {
	DSN string
	// MaxConns bounds the connection pool. Zero means the default of 5.
	MaxConns int
	// BusyTimeout bounds how long a writer waits for the database lock
	// before the operation fails. Zero means the default of 5s.
	BusyTimeout time.Duration
}

// SQLiteStore persists application records in SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite-backed application store.
// Call Migrate before serving traffic.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("application store sqlite dsn is required")
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 5
	}
	busyTimeout := cfg.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite", applicationSQLiteDSN(cfg.DSN, busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("application sqlite store open: %w", err)
	}
	db.SetMaxOpenConns(maxConns)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("application sqlite store set WAL mode: %w", err)
	}

	return &SQLiteStore{
		db:  db,
		now: time.Now,
	}, nil
}

// Migrate ensures the schema exists. Migrations are named and applied at most
// once, tracked in a _migrations table; repeat calls are no-ops. Safe to run
// on every process start.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS _migrations (
	id INTEGER PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("application sqlite store create migrations table: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("application sqlite store begin migration: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Insert-if-absent gates the migration so concurrent bootstrap attempts
	// apply it exactly once.
	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO _migrations (name, applied_at) VALUES (?, ?)`,
		initialMigrationName, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("application sqlite store record migration: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("application sqlite store migration affected rows: %w", err)
	}
	if inserted > 0 {
		if _, err := tx.ExecContext(ctx, applicationSQLiteSchema); err != nil {
			return fmt.Errorf("application sqlite store apply %s: %w", initialMigrationName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("application sqlite store commit migration: %w", err)
	}
	return nil
}

// Create validates the name, generates the record's identity and timestamp,
// and inserts it. Name uniqueness rides on the table's UNIQUE constraint so
// concurrent creates with the same name race safely.
func (s *SQLiteStore) Create(ctx context.Context, name string) (Application, error) {
	if err := ValidateName(name); err != nil {
		return Application{}, err
	}

	app := Application{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.now().UnixMilli(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO applications (id, name, created_at) VALUES (?, ?, ?)`,
		app.ID, app.Name, app.CreatedAt,
	)
	if err != nil {
		if isApplicationNameUniqueViolation(err) {
			return Application{}, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		return Application{}, fmt.Errorf("application sqlite store create: %w", err)
	}
	return app, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Application, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, created_at
FROM applications
WHERE id = ?`, id)
	return scanApplication(row)
}

func (s *SQLiteStore) GetByName(ctx context.Context, name string) (Application, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, created_at
FROM applications
WHERE name = ?`, name)
	return scanApplication(row)
}

// List returns all applications ordered by creation time descending. Names
// break ties because timestamp resolution can coarsen concurrent creates to
// the same value.
func (s *SQLiteStore) List(ctx context.Context) ([]Application, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, created_at
FROM applications
ORDER BY created_at DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("application sqlite store list: %w", err)
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		var app Application
		if err := rows.Scan(&app.ID, &app.Name, &app.CreatedAt); err != nil {
			return nil, fmt.Errorf("application sqlite store scan: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("application sqlite store list rows: %w", err)
	}
	return apps, nil
}

// Delete removes the record if present and reports whether a row was removed.
func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("application sqlite store delete: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("application sqlite store delete affected rows: %w", err)
	}
	return affected > 0, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database connection for sharing with maintenance jobs.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

type applicationScanner interface {
	Scan(dest ...any) error
}

func scanApplication(scanner applicationScanner) (Application, bool, error) {
	var app Application
	if err := scanner.Scan(&app.ID, &app.Name, &app.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Application{}, false, nil
		}
		return Application{}, false, fmt.Errorf("application sqlite store scan: %w", err)
	}
	return app, true, nil
}

// applicationSQLiteDSN attaches the busy-timeout pragma as a DSN parameter so
// it applies to every pooled connection, giving writers a bounded wait for
// the database lock instead of an immediate busy error or an unbounded block.
func applicationSQLiteDSN(dsn string, busyTimeout time.Duration) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	path := dsn
	if !strings.HasPrefix(strings.ToLower(path), "file:") {
		path = "file:" + path
	}
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)", path, busyTimeout.Milliseconds())
}

func isApplicationNameUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed: applications.name")
}

var _ Store = (*SQLiteStore)(nil)
