package daemon

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Maintenance periodically checkpoints the SQLite WAL and logs table stats.
// Long-running servers otherwise let the WAL grow without bound between
// restarts.
type Maintenance struct {
	db     *sql.DB
	logger *slog.Logger
	cron   *cron.Cron
}

// NewMaintenance creates the maintenance job. schedule is a standard cron
// expression; db is the record store's shared connection.
func NewMaintenance(db *sql.DB, schedule string, logger *slog.Logger) (*Maintenance, error) {
	if db == nil {
		return nil, errors.New("daemon: maintenance db is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Maintenance{
		db:     db,
		logger: logger,
		cron:   cron.New(),
	}
	if _, err := m.cron.AddFunc(schedule, m.run); err != nil {
		return nil, err
	}
	return m, nil
}

// Start begins the schedule.
func (m *Maintenance) Start() {
	m.cron.Start()
}

// Stop halts the schedule and waits for a running job to finish.
func (m *Maintenance) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

func (m *Maintenance) run() {
	if err := m.Checkpoint(context.Background()); err != nil {
		m.logger.Error("database maintenance failed", "error", err)
	}
}

// Checkpoint truncates the WAL and logs the application row count.
func (m *Maintenance) Checkpoint(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return err
	}

	var count int64
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM applications").Scan(&count); err != nil {
		return err
	}
	m.logger.Info("database maintenance completed", "applications", count)
	return nil
}
