package mysql

import (
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"github.com/root-talis/kaiten/driver"
	"github.com/root-talis/kaiten/driver/sqldb"
)

// DriverName is the database/sql driver registered by go-sql-driver.
const DriverName = "mysql"

const defaultPort = 3306

type DriverConfig struct {
	// DatabaseName holds the ledger table; empty means the connection's database.
	DatabaseName    string
	LedgerTableName string
	Logger          zerolog.Logger
}

// NewDriver returns a driver for MySQL and MariaDB. DDL statements commit
// implicitly on these servers, so only DML of a failed revision is rolled back.
func NewDriver(conn *sql.DB, config DriverConfig) driver.Driver {
	return sqldb.New(conn, Dialect{}, sqldb.Config{
		Table:  config.LedgerTableName,
		Schema: config.DatabaseName,
		Logger: config.Logger,
	})
}

type ConnectionConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// DSN builds a go-sql-driver data source name.
func DSN(config ConnectionConfig) string {
	port := config.Port
	if port == 0 {
		port = defaultPort
	}

	dsn := gomysql.NewConfig()
	dsn.User = config.User
	dsn.Passwd = config.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(config.Host, strconv.Itoa(port))
	dsn.DBName = config.Database

	return dsn.FormatDSN()
}

// Open connects with dsn. multiStatements is not required since statements are
// executed one by one.
func Open(dsn string) (*sql.DB, error) {
	if _, err := gomysql.ParseDSN(dsn); err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}

	conn, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}

	return conn, nil
}

// ---

type Dialect struct{}

func (Dialect) Name() string {
	return "mysql"
}

// QuoteIdentifier wraps name in backticks. Backticks inside name are doubled.
func (Dialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (Dialect) Placeholder(int) string {
	return "?"
}

func (Dialect) TableOptions() string {
	return "DEFAULT CHARSET utf8mb4"
}

func (Dialect) LedgerExistsQuery(schema, table string) (string, []any) {
	return "SELECT COUNT(*) FROM information_schema.tables " +
			"WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_name = ?",
		[]any{schema, table}
}
