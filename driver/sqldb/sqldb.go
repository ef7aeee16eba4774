package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/root-talis/kaiten/driver"
	"github.com/root-talis/kaiten/revision"
)

// DefaultLedgerTable is used when Config.Table is empty.
const DefaultLedgerTable = "kaiten_revisions"

// Dialect holds the database specific bits of the ledger SQL.
type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string

	// Placeholder returns the bind parameter for the 1-based position.
	Placeholder(position int) string

	// TableOptions is appended to the CREATE TABLE statement of the ledger.
	TableOptions() string

	// LedgerExistsQuery returns a query yielding a single count of tables named
	// table in schema. An empty schema means the connection's default.
	LedgerExistsQuery(schema, table string) (string, []any)
}

type Config struct {
	Table  string
	Schema string
	Logger zerolog.Logger
}

type sqlDriver struct {
	conn    *sql.DB
	dialect Dialect
	config  Config
	logger  zerolog.Logger
}

// New returns a driver keeping its ledger in a table of conn.
func New(conn *sql.DB, dialect Dialect, config Config) driver.Driver {
	if config.Table == "" {
		config.Table = DefaultLedgerTable
	}

	return &sqlDriver{
		conn:    conn,
		dialect: dialect,
		config:  config,
		logger:  config.Logger.With().Str("driver", dialect.Name()).Logger(),
	}
}

// ---

func (drv *sqlDriver) LedgerExists(ctx context.Context) (bool, error) {
	query, args := drv.dialect.LedgerExistsQuery(drv.config.Schema, drv.config.Table)

	var count int
	if err := drv.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check ledger table: %w", err)
	}

	return count > 0, nil
}

func (drv *sqlDriver) CreateLedger(ctx context.Context) error {
	tableName := drv.ledgerTableName()

	query := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s ("+
			"id          VARCHAR(64) NOT NULL, "+
			"description TEXT NOT NULL, "+
			"ts          VARCHAR(32) NOT NULL, "+
			"PRIMARY KEY (id)"+
			")",
		tableName,
	)
	if options := drv.dialect.TableOptions(); options != "" {
		query += " " + options
	}

	if _, err := drv.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create ledger table %s: %w", tableName, err)
	}

	drv.logger.Debug().Str("table", tableName).Msg("ledger table is ready")

	return nil
}

func (drv *sqlDriver) Head(ctx context.Context) (*revision.Record, error) {
	row := drv.conn.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT id, description, ts FROM %s ORDER BY ts DESC, id DESC LIMIT 1",
		drv.ledgerTableName(),
	))

	var id, description, ts string
	err := row.Scan(&id, &description, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger head: %w", err)
	}

	record, err := makeRecord(id, description, ts)
	if err != nil {
		return nil, err
	}

	return &record, nil
}

func (drv *sqlDriver) Records(ctx context.Context) ([]revision.Record, error) {
	rows, err := drv.conn.QueryContext(ctx, fmt.Sprintf(
		"SELECT id, description, ts FROM %s ORDER BY ts, id",
		drv.ledgerTableName(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger table: %w", err)
	}
	defer rows.Close()

	result := make([]revision.Record, 0)
	for rows.Next() {
		var id, description, ts string

		if err := rows.Scan(&id, &description, &ts); err != nil {
			return nil, fmt.Errorf("%w: %s", driver.ErrInvalidLedger, err)
		}

		record, err := makeRecord(id, description, ts)
		if err != nil {
			return nil, err
		}

		result = append(result, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query ledger table: %w", err)
	}

	return result, nil
}

func makeRecord(id, description, ts string) (revision.Record, error) {
	timestamp, err := revision.ParseTimestamp(ts)
	if err != nil {
		return revision.Record{}, fmt.Errorf("%w: revision %s: %s", driver.ErrInvalidLedger, id, err)
	}

	return revision.Record{
		ID:          id,
		Description: description,
		Timestamp:   timestamp,
	}, nil
}

// ---

func (drv *sqlDriver) Apply(ctx context.Context, revisions []revision.Revision) error {
	return drv.runAll(ctx, revisions, revision.Up)
}

func (drv *sqlDriver) Remove(ctx context.Context, revisions []revision.Revision) error {
	return drv.runAll(ctx, revisions, revision.Down)
}

func (drv *sqlDriver) runAll(ctx context.Context, revisions []revision.Revision, dir revision.Direction) error {
	drv.logger.Debug().
		Str("direction", dir.String()).
		Int("count", len(revisions)).
		Msg("running revisions")

	for _, rev := range revisions {
		if err := drv.run(ctx, rev, dir); err != nil {
			return err
		}
	}

	return nil
}

func (drv *sqlDriver) run(ctx context.Context, rev revision.Revision, dir revision.Direction) error {
	log := drv.logger.With().
		Str("revision", rev.ID).
		Str("description", rev.Description).
		Str("direction", dir.String()).
		Logger()

	fail := func(index int, statement string, err error) error {
		return &driver.OperationError{
			Direction: dir,
			Revision:  rev.Record(),
			Statement: statement,
			Index:     index,
			Err:       err,
		}
	}

	tx, err := drv.conn.BeginTx(ctx, nil)
	if err != nil {
		return fail(-1, "", fmt.Errorf("failed to begin transaction: %w", err))
	}

	for i, statement := range rev.Statements(dir) {
		log.Debug().Int("index", i).Str("statement", statement).Msg("executing statement")

		if _, err := tx.ExecContext(ctx, statement); err != nil {
			drv.rollback(tx, log)
			return fail(i, statement, err)
		}
	}

	if err := drv.writeLedger(ctx, tx, rev, dir); err != nil {
		drv.rollback(tx, log)
		return fail(-1, "", err)
	}

	if err := tx.Commit(); err != nil {
		return fail(-1, "", fmt.Errorf("failed to commit transaction: %w", err))
	}

	log.Info().Msg("revision committed")

	return nil
}

func (drv *sqlDriver) writeLedger(ctx context.Context, tx *sql.Tx, rev revision.Revision, dir revision.Direction) error {
	tableName := drv.ledgerTableName()

	if dir == revision.Up {
		_, err := tx.ExecContext(ctx,
			fmt.Sprintf(
				"INSERT INTO %s (id, description, ts) VALUES (%s, %s, %s)",
				tableName, drv.dialect.Placeholder(1), drv.dialect.Placeholder(2), drv.dialect.Placeholder(3),
			),
			rev.ID, rev.Description, revision.FormatLedgerTimestamp(rev.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("failed to insert ledger row: %w", err)
		}
		return nil
	}

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = %s", tableName, drv.dialect.Placeholder(1)),
		rev.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete ledger row: %w", err)
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		drv.logger.Warn().Str("revision", rev.ID).Msg("ledger row was already gone")
	}

	return nil
}

func (drv *sqlDriver) rollback(tx *sql.Tx, log zerolog.Logger) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Error().Err(err).Msg("failed to roll back transaction")
	}
}

func (drv *sqlDriver) ledgerTableName() string {
	if drv.config.Schema == "" {
		return drv.dialect.QuoteIdentifier(drv.config.Table)
	}

	return drv.dialect.QuoteIdentifier(drv.config.Schema) + "." + drv.dialect.QuoteIdentifier(drv.config.Table)
}
