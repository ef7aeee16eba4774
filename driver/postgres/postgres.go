package postgres

import (
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/root-talis/kaiten/driver"
	"github.com/root-talis/kaiten/driver/sqldb"
)

// DriverName is the database/sql driver registered by lib/pq.
const DriverName = "postgres"

const defaultPort = 5432

type DriverConfig struct {
	// SchemaName holds the ledger table; empty means current_schema().
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

type ConnectionConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN builds a postgres:// connection url understood by lib/pq.
func DSN(config ConnectionConfig) string {
	port := config.Port
	if port == 0 {
		port = defaultPort
	}

	dsn := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(config.Host, strconv.Itoa(port)),
		Path:   "/" + config.Database,
	}

	if config.User != "" {
		if config.Password != "" {
			dsn.User = url.UserPassword(config.User, config.Password)
		} else {
			dsn.User = url.User(config.User)
		}
	}

	if config.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {config.SSLMode}}.Encode()
	}

	return dsn.String()
}

func Open(dsn string) (*sql.DB, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}

	return sql.OpenDB(connector), nil
}

// ---

type Dialect struct{}

func (Dialect) Name() string {
	return "postgres"
}

func (Dialect) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

func (Dialect) Placeholder(position int) string {
	return "$" + strconv.Itoa(position)
}

func (Dialect) TableOptions() string {
	return ""
}

func (Dialect) LedgerExistsQuery(schema, table string) (string, []any) {
	return "SELECT COUNT(*) FROM information_schema.tables " +
			"WHERE table_schema = COALESCE(NULLIF($1::text, ''), current_schema()) AND table_name = $2",
		[]any{schema, table}
}
