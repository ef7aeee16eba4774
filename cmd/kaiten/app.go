package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/juju/clock"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/root-talis/kaiten"
	"github.com/root-talis/kaiten/config"
	"github.com/root-talis/kaiten/driver"
	"github.com/root-talis/kaiten/driver/mysql"
	"github.com/root-talis/kaiten/driver/postgres"
	"github.com/root-talis/kaiten/driver/sqlite"
	"github.com/root-talis/kaiten/logging"
	"github.com/root-talis/kaiten/source/files"
)

const defaultWorkDir = "migrations"

type app struct {
	stdout    io.Writer
	stderr    io.Writer
	clock     clock.Clock
	lookupEnv func(string) (string, bool)

	workDir    string
	configPath string
	logLevel   string
	pretty     bool
	prettySet  bool
}

func newRootCommand(a *app) *cobra.Command {
	workDir := defaultWorkDir
	if dir, ok := a.lookupEnv("KAITEN_DIR"); ok && dir != "" {
		workDir = dir
	}

	root := &cobra.Command{
		Use:           "kaiten",
		Short:         "Reversible SQL schema revisions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.prettySet = cmd.Flags().Changed("pretty")
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.workDir, "dir", workDir, "work directory holding kaiten.yaml and versions/ (env KAITEN_DIR)")
	flags.StringVar(&a.configPath, "config", "", "explicit configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level, overrides log.level")
	flags.BoolVar(&a.pretty, "pretty", false, "human readable logs, overrides log.pretty")

	root.AddCommand(
		newSetupCommand(a),
		newInitCommand(a),
		newRevisionCommand(a),
		newHistoryCommand(a),
		newShowCommand(a),
		newUpgradeCommand(a),
		newRollbackCommand(a),
		newVersionCommand(a),
	)

	return root
}

// ---

// session is an engine bound to an open database connection.
type session struct {
	kaiten.Kaiten
	logger zerolog.Logger
	conn   *sql.DB
}

func (s *session) Close() {
	if err := s.conn.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to close database connection")
	}
}

func (a *app) open(ctx context.Context) (*session, error) {
	src, err := files.NewFilesSource(os.DirFS(a.workDir), ".")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(a.workDir, a.configPath)
	if err != nil {
		return nil, err
	}

	logConfig := logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}
	if a.logLevel != "" {
		logConfig.Level = a.logLevel
	}
	if a.prettySet {
		logConfig.Pretty = a.pretty
	}
	logger := logging.New(a.stderr, logConfig)

	drv, conn, err := openDriver(cfg, a.workDir, logger)
	if err != nil {
		return nil, err
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.DB.Driver, err)
	}

	return &session{
		Kaiten: kaiten.New(src, drv, kaiten.WithLogger(logger)),
		logger: logger,
		conn:   conn,
	}, nil
}

// openDriver connects to the database named by cfg. Relative sqlite paths are
// resolved against workDir.
func openDriver(cfg config.Config, workDir string, logger zerolog.Logger) (driver.Driver, *sql.DB, error) {
	switch cfg.DB.Driver {
	case config.DriverMySQL:
		dsn := cfg.DB.DSN
		if dsn == "" {
			dsn = mysql.DSN(mysql.ConnectionConfig{
				Host:     cfg.DB.Host,
				Port:     cfg.DB.Port,
				User:     cfg.DB.User,
				Password: cfg.DB.Password,
				Database: cfg.DB.Name,
			})
		}

		conn, err := mysql.Open(dsn)
		if err != nil {
			return nil, nil, err
		}

		return mysql.NewDriver(conn, mysql.DriverConfig{
			DatabaseName:    cfg.Ledger.Schema,
			LedgerTableName: cfg.Ledger.Table,
			Logger:          logger,
		}), conn, nil

	case config.DriverPostgres:
		dsn := cfg.DB.DSN
		if dsn == "" {
			dsn = postgres.DSN(postgres.ConnectionConfig{
				Host:     cfg.DB.Host,
				Port:     cfg.DB.Port,
				User:     cfg.DB.User,
				Password: cfg.DB.Password,
				Database: cfg.DB.Name,
				SSLMode:  cfg.DB.SSLMode,
			})
		}

		conn, err := postgres.Open(dsn)
		if err != nil {
			return nil, nil, err
		}

		return postgres.NewDriver(conn, postgres.DriverConfig{
			SchemaName:      cfg.Ledger.Schema,
			LedgerTableName: cfg.Ledger.Table,
			Logger:          logger,
		}), conn, nil

	case config.DriverSQLite:
		path := cfg.DB.DSN
		if path == "" {
			path = cfg.DB.Name
		}

		conn, err := sqlite.Open(sqlite.ResolvePath(workDir, path))
		if err != nil {
			return nil, nil, err
		}

		return sqlite.NewDriver(conn, sqlite.DriverConfig{
			SchemaName:      cfg.Ledger.Schema,
			LedgerTableName: cfg.Ledger.Table,
			Logger:          logger,
		}), conn, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown db driver \"%s\"", config.ErrInvalidConfig, cfg.DB.Driver)
	}
}
