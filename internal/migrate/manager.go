package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pulsecrm/apiserver/internal/db"
	"go.uber.org/zap"
)

// Manager applies schema-change units against a persistent ledger
// table. A unit is either fully applied (ledger row exists, every
// statement committed) or not applied at all; each unit runs in its
// own transaction and a failure rolls the whole unit back.
type Manager struct {
	db     *db.DB
	dir    string
	logger *zap.Logger
}

func NewManager(database *db.DB, dir string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{db: database, dir: dir, logger: logger}
}

// UnitStatus is one row of the status report.
type UnitStatus struct {
	Version   string
	Name      string
	Applied   bool
	AppliedAt time.Time
}

const ledgerSchema = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL,
		rollback_script TEXT
	)`

// ensureLedger creates the ledger table if absent. Every operation
// calls it first, so status/apply/rollback work against a fresh
// database.
func (m *Manager) ensureLedger(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, ledgerSchema); err != nil {
		return fmt.Errorf("create migration ledger: %w", err)
	}
	return nil
}

func (m *Manager) appliedVersions(ctx context.Context) (map[string]time.Time, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read migration ledger: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]time.Time)
	for rows.Next() {
		var version string
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, err
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Up applies every pending unit in ascending version order and returns
// how many were applied. The run aborts on the first failing unit;
// that unit's transaction is rolled back and its ledger row is never
// written, so it stays pending for retry.
func (m *Manager) Up(ctx context.Context) (int, error) {
	if err := m.ensureLedger(ctx); err != nil {
		return 0, err
	}

	units, err := discoverUnits(m.dir)
	if err != nil {
		return 0, err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, unit := range units {
		if _, done := applied[unit.Version]; done {
			continue
		}
		if err := m.applyUnit(ctx, unit); err != nil {
			return count, fmt.Errorf("migration %s (%s): %w", unit.Version, unit.Name, err)
		}
		m.logger.Info("migration applied",
			zap.String("version", unit.Version),
			zap.String("name", unit.Name),
		)
		count++
	}

	if count == 0 {
		m.logger.Info("no pending migrations")
	}
	return count, nil
}

func (m *Manager) applyUnit(ctx context.Context, unit Unit) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, stmt := range SplitStatements(unit.Up) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}

	// A unit may insert its own ledger row (for example when seeding
	// the table itself); skip the manager's insert in that case.
	if !insertsOwnLedgerRow(unit.Up) {
		insert := m.db.Rebind(`
			INSERT INTO schema_migrations (version, name, applied_at, rollback_script)
			VALUES (?, ?, ?, ?)`)
		var rollback any
		if unit.Down != "" {
			rollback = unit.Down
		}
		if _, err := tx.ExecContext(ctx, insert, unit.Version, unit.Name, time.Now().UTC(), rollback); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record ledger row: %w", err)
		}
	}

	return tx.Commit()
}

// Rollback reverts the most recently applied unit using the rollback
// script stored in its ledger row. A unit without a rollback script is
// a logged no-op; rollback is best-effort, not guaranteed for every
// unit.
func (m *Manager) Rollback(ctx context.Context) error {
	if err := m.ensureLedger(ctx); err != nil {
		return err
	}

	var version, name string
	var script sql.NullString
	row := m.db.QueryRowContext(ctx, `
		SELECT version, name, rollback_script
		FROM schema_migrations
		ORDER BY version DESC
		LIMIT 1`)
	if err := row.Scan(&version, &name, &script); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			m.logger.Warn("nothing to roll back: ledger is empty")
			return nil
		}
		return fmt.Errorf("read migration ledger: %w", err)
	}

	if !script.Valid || strings.TrimSpace(script.String) == "" {
		m.logger.Warn("migration has no rollback script, skipping",
			zap.String("version", version),
			zap.String("name", name),
		)
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, stmt := range SplitStatements(script.String) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("rollback %s (%s): exec %q: %w", version, name, firstLine(stmt), err)
		}
	}

	del := m.db.Rebind(`DELETE FROM schema_migrations WHERE version = ?`)
	if _, err := tx.ExecContext(ctx, del, version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete ledger row %s: %w", version, err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	m.logger.Info("migration rolled back",
		zap.String("version", version),
		zap.String("name", name),
	)
	return nil
}

// Status reports every discovered unit with its applied timestamp, if
// any. It is a pure read.
func (m *Manager) Status(ctx context.Context) ([]UnitStatus, error) {
	if err := m.ensureLedger(ctx); err != nil {
		return nil, err
	}

	units, err := discoverUnits(m.dir)
	if err != nil {
		return nil, err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]UnitStatus, 0, len(units))
	for _, unit := range units {
		status := UnitStatus{Version: unit.Version, Name: unit.Name}
		if appliedAt, ok := applied[unit.Version]; ok {
			status.Applied = true
			status.AppliedAt = appliedAt
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func insertsOwnLedgerRow(script string) bool {
	return strings.Contains(
		strings.ToLower(script),
		"insert into schema_migrations",
	)
}

func firstLine(stmt string) string {
	if idx := strings.IndexByte(stmt, '\n'); idx >= 0 {
		return strings.TrimSpace(stmt[:idx])
	}
	return stmt
}
