package config

import (
	"errors"
	"fmt"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	DB     DBConfig     `mapstructure:"db"`
	Ledger LedgerConfig `mapstructure:"ledger"`
	Log    LogConfig    `mapstructure:"log"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`

	// DSN takes precedence over the individual connection fields.
	DSN string `mapstructure:"dsn"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`

	// Name is the database name, or the database file for sqlite.
	Name    string `mapstructure:"name"`
	SSLMode string `mapstructure:"sslmode"`
}

type LedgerConfig struct {
	Table  string `mapstructure:"table"`
	Schema string `mapstructure:"schema"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("%w: unknown db driver \"%s\", expected one of %s, %s, %s",
			ErrInvalidConfig, c.DB.Driver, DriverMySQL, DriverPostgres, DriverSQLite)
	}

	if c.DB.DSN == "" && c.DB.Name == "" {
		return fmt.Errorf("%w: db.dsn or db.name is required", ErrInvalidConfig)
	}

	if c.DB.Port < 0 || c.DB.Port > 65535 {
		return fmt.Errorf("%w: db.port must be between 0 and 65535", ErrInvalidConfig)
	}

	if c.Ledger.Table == "" {
		return fmt.Errorf("%w: ledger.table is required", ErrInvalidConfig)
	}

	return nil
}
