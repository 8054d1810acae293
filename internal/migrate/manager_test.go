package migrate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pulsecrm/apiserver/internal/db"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *db.DB, string) {
	t.Helper()

	ctx := context.Background()
	database, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "migrate_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	dir := t.TempDir()
	return NewManager(database, dir, nil), database, dir
}

func writeUnit(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func tableExists(t *testing.T, database *db.DB, table string) bool {
	t.Helper()
	var count int
	err := database.QueryRowContext(context.Background(),
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count)
	require.NoError(t, err)
	return count > 0
}

func TestManager_UpAppliesInOrder(t *testing.T) {
	t.Parallel()

	manager, database, dir := newTestManager(t)
	ctx := context.Background()

	writeUnit(t, dir, "20250102000000_create_b.sql", "CREATE TABLE b (id INTEGER);")
	writeUnit(t, dir, "20250101000000_create_a.sql", "CREATE TABLE a (id INTEGER);\n-- rollback\nDROP TABLE a;")

	applied, err := manager.Up(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, applied)
	require.True(t, tableExists(t, database, "a"))
	require.True(t, tableExists(t, database, "b"))

	statuses, err := manager.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	require.Equal(t, "Create A", statuses[0].Name)
	require.True(t, statuses[0].Applied)
	require.False(t, statuses[0].AppliedAt.IsZero())
	require.True(t, statuses[1].Applied)
}

func TestManager_UpIsIdempotent(t *testing.T) {
	t.Parallel()

	manager, _, dir := newTestManager(t)
	ctx := context.Background()

	writeUnit(t, dir, "20250101000000_create_a.sql", "CREATE TABLE a (id INTEGER);")

	applied, err := manager.Up(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, applied)

	applied, err = manager.Up(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, applied, "second run with no new units must apply nothing")
}

func TestManager_UnitAtomicity(t *testing.T) {
	t.Parallel()

	manager, database, dir := newTestManager(t)
	ctx := context.Background()

	// The second statement fails; the first must be rolled back with
	// it and no ledger row may survive.
	writeUnit(t, dir, "20250101000000_broken.sql",
		"CREATE TABLE a (id INTEGER);\nCREATE TABLE a (id INTEGER);")

	_, err := manager.Up(ctx)
	require.Error(t, err)
	require.False(t, tableExists(t, database, "a"))

	statuses, err := manager.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.False(t, statuses[0].Applied, "failed unit must stay pending")
}

func TestManager_FailureAbortsRun(t *testing.T) {
	t.Parallel()

	manager, database, dir := newTestManager(t)
	ctx := context.Background()

	writeUnit(t, dir, "20250101000000_good.sql", "CREATE TABLE a (id INTEGER);")
	writeUnit(t, dir, "20250102000000_broken.sql", "SYNTAX ERROR;")
	writeUnit(t, dir, "20250103000000_after.sql", "CREATE TABLE c (id INTEGER);")

	applied, err := manager.Up(ctx)
	require.Error(t, err)
	require.Equal(t, 1, applied)
	require.True(t, tableExists(t, database, "a"), "units before the failure stay applied")
	require.False(t, tableExists(t, database, "c"), "units after the failure must not run")
}

func TestManager_Rollback(t *testing.T) {
	t.Parallel()

	manager, database, dir := newTestManager(t)
	ctx := context.Background()

	writeUnit(t, dir, "20250101000000_create_a.sql",
		"CREATE TABLE a (id INTEGER);\n-- rollback\nDROP TABLE a;")

	_, err := manager.Up(ctx)
	require.NoError(t, err)
	require.True(t, tableExists(t, database, "a"))

	require.NoError(t, manager.Rollback(ctx))
	require.False(t, tableExists(t, database, "a"))

	statuses, err := manager.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.False(t, statuses[0].Applied, "rolled-back unit must report pending again")
}

func TestManager_RollbackWithoutScriptIsNoOp(t *testing.T) {
	t.Parallel()

	manager, database, dir := newTestManager(t)
	ctx := context.Background()

	writeUnit(t, dir, "20250101000000_create_a.sql", "CREATE TABLE a (id INTEGER);")

	_, err := manager.Up(ctx)
	require.NoError(t, err)

	require.NoError(t, manager.Rollback(ctx), "missing rollback script warns, never fails")
	require.True(t, tableExists(t, database, "a"))

	statuses, err := manager.Status(ctx)
	require.NoError(t, err)
	require.True(t, statuses[0].Applied, "unit stays applied after the no-op")
}

func TestManager_RollbackEmptyLedger(t *testing.T) {
	t.Parallel()

	manager, _, _ := newTestManager(t)
	require.NoError(t, manager.Rollback(context.Background()))
}

func TestManager_TriggerUnit(t *testing.T) {
	t.Parallel()

	manager, database, dir := newTestManager(t)
	ctx := context.Background()

	writeUnit(t, dir, "20250101000000_users_with_trigger.sql", `CREATE TABLE u (
    id INTEGER PRIMARY KEY,
    name TEXT,
    touched INTEGER DEFAULT 0
);

CREATE TRIGGER trg_touch AFTER UPDATE OF name ON u
FOR EACH ROW
BEGIN
    UPDATE u SET touched = touched + 1 WHERE id = NEW.id;
END;

-- rollback
DROP TRIGGER trg_touch;
DROP TABLE u;`)

	_, err := manager.Up(ctx)
	require.NoError(t, err)

	_, err = database.ExecContext(ctx, `INSERT INTO u (id, name) VALUES (1, 'before')`)
	require.NoError(t, err)
	_, err = database.ExecContext(ctx, `UPDATE u SET name = 'after' WHERE id = 1`)
	require.NoError(t, err)

	var touched int
	require.NoError(t, database.QueryRowContext(ctx, `SELECT touched FROM u WHERE id = 1`).Scan(&touched))
	require.Equal(t, 1, touched, "trigger installed by the migration must fire")

	require.NoError(t, manager.Rollback(ctx))
	require.False(t, tableExists(t, database, "u"))
}

func TestManager_CommentedTriggerUnit(t *testing.T) {
	t.Parallel()

	manager, database, dir := newTestManager(t)
	ctx := context.Background()

	// Shaped like a filled-in Generate template: comment lines above
	// every statement, including the trigger.
	writeUnit(t, dir, "20250101000000_add_touch_trigger.sql", `-- Add Touch Trigger
-- Statements above the marker run on migrate up.

CREATE TABLE u (
    id INTEGER PRIMARY KEY,
    name TEXT,
    counter INTEGER DEFAULT 0
);

-- touch counter on update
CREATE TRIGGER trg_touch AFTER UPDATE OF name ON u
FOR EACH ROW
BEGIN
    UPDATE u SET counter = counter + 1 WHERE id = NEW.id;
END;

-- rollback
-- Statements below the marker run on migrate rollback.
DROP TRIGGER trg_touch;
DROP TABLE u;`)

	applied, err := manager.Up(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, applied)

	_, err = database.ExecContext(ctx, `INSERT INTO u (id, name) VALUES (1, 'before')`)
	require.NoError(t, err)
	_, err = database.ExecContext(ctx, `UPDATE u SET name = 'after' WHERE id = 1`)
	require.NoError(t, err)

	var counter int
	require.NoError(t, database.QueryRowContext(ctx, `SELECT counter FROM u WHERE id = 1`).Scan(&counter))
	require.Equal(t, 1, counter, "trigger must survive the comment above its header")

	require.NoError(t, manager.Rollback(ctx))
	require.False(t, tableExists(t, database, "u"))
}

func TestManager_GenerateThenStatusThenUp(t *testing.T) {
	t.Parallel()

	manager, _, dir := newTestManager(t)
	ctx := context.Background()

	path, err := Generate(dir, "add widgets table")
	require.NoError(t, err)

	statuses, err := manager.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.Equal(t, "Add Widgets Table", statuses[0].Name)
	require.False(t, statuses[0].Applied)

	// Fill the template in and apply it.
	content := "CREATE TABLE widgets (id INTEGER PRIMARY KEY, label TEXT);\n-- rollback\nDROP TABLE widgets;"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	applied, err := manager.Up(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, applied)

	statuses, err = manager.Status(ctx)
	require.NoError(t, err)
	require.True(t, statuses[0].Applied)
	require.False(t, statuses[0].AppliedAt.IsZero())
}
