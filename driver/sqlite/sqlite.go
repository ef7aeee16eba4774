package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
	"github.com/rs/zerolog"

	"github.com/root-talis/kaiten/driver"
	"github.com/root-talis/kaiten/driver/sqldb"
)

// DriverName is the database/sql driver registered by go-sqlite3.
const DriverName = "sqlite3"

type DriverConfig struct {
	// SchemaName is an attached database name, empty for "main".
	SchemaName      string
	LedgerTableName string
	Logger          zerolog.Logger
}

func NewDriver(conn *sql.DB, config DriverConfig) driver.Driver {
	return sqldb.New(conn, Dialect{}, sqldb.Config{
		Table:  config.LedgerTableName,
		Schema: config.SchemaName,
		Logger: config.Logger,
	})
}

// Open opens the database file at path with a single connection. Foreign keys
// are enforced.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open(DriverName, DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	conn.SetMaxOpenConns(1)

	return conn, nil
}

// DSN returns the go-sqlite3 data source name for a database file.
func DSN(path string) string {
	if strings.HasPrefix(path, "file:") || path == ":memory:" {
		return path
	}
	return "file:" + path + "?_foreign_keys=on"
}

// ResolvePath makes a relative database file path relative to baseDir. Absolute
// paths, "file:" names and ":memory:" are returned unchanged.
func ResolvePath(baseDir, path string) string {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ---

type Dialect struct{}

func (Dialect) Name() string {
	return "sqlite"
}

func (Dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Dialect) Placeholder(int) string {
	return "?"
}

func (Dialect) TableOptions() string {
	return ""
}

func (d Dialect) LedgerExistsQuery(schema, table string) (string, []any) {
	master := "sqlite_master"
	if schema != "" {
		master = d.QuoteIdentifier(schema) + ".sqlite_master"
	}

	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE type = 'table' AND name = ?", master), []any{table}
}
