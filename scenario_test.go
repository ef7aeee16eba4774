package kaiten_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/root-talis/kaiten"
	"github.com/root-talis/kaiten/driver"
	"github.com/root-talis/kaiten/driver/sqlite"
	"github.com/root-talis/kaiten/revision"
	"github.com/root-talis/kaiten/source/files"
)

// countingDriver records how often the database was written to.
type countingDriver struct {
	driver.Driver
	writes int
}

func (d *countingDriver) Apply(ctx context.Context, revisions []revision.Revision) error {
	d.writes++
	return d.Driver.Apply(ctx, revisions)
}

func (d *countingDriver) Remove(ctx context.Context, revisions []revision.Revision) error {
	d.writes++
	return d.Driver.Remove(ctx, revisions)
}

type scenario struct {
	workDir string
	conn    *sql.DB
	driver  *countingDriver
}

func newScenario(t *testing.T) *scenario {
	t.Helper()

	dir := t.TempDir()
	workDir := filepath.Join(dir, "migrations")
	require.NoError(t, files.Setup(workDir))

	conn, err := sqlite.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	drv := &countingDriver{Driver: sqlite.NewDriver(conn, sqlite.DriverConfig{})}
	require.NoError(t, drv.CreateLedger(context.Background()))

	return &scenario{workDir: workDir, conn: conn, driver: drv}
}

func (s *scenario) write(t *testing.T, id, description string, ts time.Time, upgrade, downgrade string) {
	t.Helper()

	rev, err := revision.WithScripts(revision.Revision{
		ID:          id,
		Description: description,
		Timestamp:   ts,
	}, upgrade, downgrade)
	require.NoError(t, err)

	_, err = files.Write(s.workDir, rev)
	require.NoError(t, err)
}

func (s *scenario) engine(t *testing.T) kaiten.Kaiten {
	t.Helper()

	src, err := files.NewFilesSource(os.DirFS(s.workDir), ".")
	require.NoError(t, err)

	return kaiten.New(src, s.driver)
}

func (s *scenario) ledger(t *testing.T) []revision.Record {
	t.Helper()

	records, err := s.driver.Records(context.Background())
	require.NoError(t, err)

	return records
}

func (s *scenario) tableExists(t *testing.T, name string) bool {
	t.Helper()

	var count int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&count)
	require.NoError(t, err)

	return count > 0
}

// ---

func TestAddTableFooScenario(t *testing.T) {
	t.Parallel()
	t.Logf("Should create and drop table foo and keep the ledger in sync.")

	ctx := context.Background()
	s := newScenario(t)
	s.write(t, "abc123", "add table foo", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"create table foo(a int);", "drop table foo;")

	result, err := s.engine(t).Upgrade(ctx, kaiten.UpgradeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"abc123"}, ids(result.Revisions))

	assert.Equal(t, []revision.Record{{
		ID:          "abc123",
		Description: "add table foo",
		Timestamp:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}}, s.ledger(t))
	assert.True(t, s.tableExists(t, "foo"))

	_, err = s.engine(t).Rollback(ctx, kaiten.RollbackOptions{})
	require.NoError(t, err)

	assert.Empty(t, s.ledger(t))
	assert.False(t, s.tableExists(t, "foo"))
}

func TestPartialFailureIsolation(t *testing.T) {
	t.Parallel()
	t.Logf("Should keep the first revision, reject the second and leave the third pending.")

	ctx := context.Background()
	s := newScenario(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s.write(t, "first", "one", base, "create table one(a int);", "drop table one;")
	s.write(t, "second", "two", base.Add(time.Minute),
		"create table two(a int);\ninsert into nowhere values (1);", "drop table two;")
	s.write(t, "third", "three", base.Add(2*time.Minute), "create table three(a int);", "drop table three;")

	result, err := s.engine(t).Upgrade(ctx, kaiten.UpgradeOptions{})

	var opErr *driver.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "second", opErr.Revision.ID)
	assert.Equal(t, []string{"first"}, ids(result.Revisions))

	assert.Equal(t, []string{"first"}, recordIDsOf(s.ledger(t)))
	assert.True(t, s.tableExists(t, "one"))
	assert.False(t, s.tableExists(t, "two"))
	assert.False(t, s.tableExists(t, "three"))

	status, err := s.engine(t).Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "third"}, ids(status.Pending))
}

func TestUpgradeThenRollbackEmptiesLedger(t *testing.T) {
	t.Parallel()
	t.Logf("Should return the ledger to empty after rolling back everything that was applied.")

	ctx := context.Background()
	s := newScenario(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.write(t, fmt.Sprintf("rev%d", i), fmt.Sprintf("step %d", i), base.Add(time.Duration(i)*time.Hour),
			fmt.Sprintf("create table t%d(a int);\ninsert into t%d values (%d);", i, i, i),
			fmt.Sprintf("drop table t%d;", i))
	}

	status, err := s.engine(t).Status(ctx)
	require.NoError(t, err)

	upgraded, err := s.engine(t).Upgrade(ctx, kaiten.UpgradeOptions{Count: len(status.Pending)})
	require.NoError(t, err)
	require.Len(t, upgraded.Revisions, 5)

	head, err := s.driver.Head(ctx)
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, "rev4", head.ID)

	status, err = s.engine(t).Status(ctx)
	require.NoError(t, err)

	rolledBack, err := s.engine(t).Rollback(ctx, kaiten.RollbackOptions{Count: len(status.Applied)})
	require.NoError(t, err)
	assert.Equal(t, []string{"rev4", "rev3", "rev2", "rev1", "rev0"}, ids(rolledBack.Revisions))

	assert.Empty(t, s.ledger(t))
	for i := 0; i < 5; i++ {
		assert.False(t, s.tableExists(t, fmt.Sprintf("t%d", i)))
	}
}

func TestRepeatedUpgradeWritesNothing(t *testing.T) {
	t.Parallel()
	t.Logf("Should find nothing pending after a full upgrade.")

	ctx := context.Background()
	s := newScenario(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s.write(t, "aaa", "a", base, "create table a(x int);", "drop table a;")
	s.write(t, "bbb", "b", base.Add(time.Second), "create table b(x int);", "drop table b;")

	_, err := s.engine(t).Upgrade(ctx, kaiten.UpgradeOptions{})
	require.NoError(t, err)

	writes := s.driver.writes

	result, err := s.engine(t).Upgrade(ctx, kaiten.UpgradeOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Revisions)
	assert.Equal(t, writes, s.driver.writes)
}

func TestPreflightLeavesLedgerUntouched(t *testing.T) {
	t.Parallel()
	t.Logf("Should not touch the database when a selected revision has no upgrade script.")

	ctx := context.Background()
	s := newScenario(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s.write(t, "good", "good", base, "create table good(x int);", "drop table good;")
	s.write(t, "empty", "empty", base.Add(time.Second), "", "drop table nothing;")

	_, err := s.engine(t).Upgrade(ctx, kaiten.UpgradeOptions{})

	var preflightErr *kaiten.PreflightError
	require.ErrorAs(t, err, &preflightErr)
	require.Len(t, preflightErr.Violations, 1)
	assert.Equal(t, "empty", preflightErr.Violations[0].ID)
	assert.True(t, preflightErr.Violations[0].Asymmetric)

	assert.Equal(t, 0, s.driver.writes)
	assert.Empty(t, s.ledger(t))
	assert.False(t, s.tableExists(t, "good"))
}

func TestRollbackToTarget(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newScenario(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, name := range []string{"a", "b", "c"} {
		s.write(t, name, name, base, "create table "+name+"(x int);", "drop table "+name+";")
		base = base.Add(time.Minute)
	}

	_, err := s.engine(t).Upgrade(ctx, kaiten.UpgradeOptions{})
	require.NoError(t, err)

	_, err = s.engine(t).Rollback(ctx, kaiten.RollbackOptions{Target: "missing"})
	require.ErrorIs(t, err, kaiten.ErrUnknownRevision)
	assert.Len(t, s.ledger(t), 3)

	result, err := s.engine(t).Rollback(ctx, kaiten.RollbackOptions{Target: "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, ids(result.Revisions))
	assert.Equal(t, []string{"a"}, recordIDsOf(s.ledger(t)))
}

func TestTriggerRevision(t *testing.T) {
	t.Parallel()
	t.Logf("Should apply a revision whose trigger body holds several statements.")

	ctx := context.Background()
	s := newScenario(t)

	s.write(t, "trigger", "count inserts", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"create table foo(a int);\n"+
			"create table counters(n int);\n"+
			"insert into counters values (0);\n"+
			"create trigger foo_count after insert on foo\n"+
			"begin\n"+
			"  update counters set n = n + 1;\n"+
			"  update counters set n = n + 1;\n"+
			"end;\n"+
			"insert into foo values (1);",
		"drop trigger foo_count;\ndrop table counters;\ndrop table foo;")

	_, err := s.engine(t).Upgrade(ctx, kaiten.UpgradeOptions{})
	require.NoError(t, err)

	var n int
	require.NoError(t, s.conn.QueryRow("SELECT n FROM counters").Scan(&n))
	assert.Equal(t, 2, n)

	_, err = s.engine(t).Rollback(ctx, kaiten.RollbackOptions{})
	require.NoError(t, err)
	assert.False(t, s.tableExists(t, "foo"))
}

func recordIDsOf(records []revision.Record) []string {
	result := make([]string, 0, len(records))
	for _, record := range records {
		result = append(result, record.ID)
	}
	return result
}
