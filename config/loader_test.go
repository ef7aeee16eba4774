package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/root-talis/kaiten/config"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, "kaiten.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

var loadTestsTable = []struct { // nolint:gochecknoglobals
	name        string
	content     string
	explicit    bool
	expectError bool
	check       func(t *testing.T, cfg config.Config)
}{
	// -- success tests ------
	/* s0 */ {
		name: "test s0: should use defaults without a config file",
		check: func(t *testing.T, cfg config.Config) {
			t.Helper()
			assert.Equal(t, config.DriverSQLite, cfg.DB.Driver)
			assert.Equal(t, "kaiten.db", cfg.DB.Name)
			assert.Equal(t, "kaiten_revisions", cfg.Ledger.Table)
			assert.Equal(t, "info", cfg.Log.Level)
			assert.False(t, cfg.Log.Pretty)
		},
	},
	/* s1 */ {
		name: "test s1: should read kaiten.yaml from the work directory",
		content: "db:\n  driver: postgres\n  host: db.local\n  port: 6543\n  user: app\n  name: shop\n" +
			"ledger:\n  table: schema_log\n  schema: meta\nlog:\n  level: debug\n  pretty: true\n",
		check: func(t *testing.T, cfg config.Config) {
			t.Helper()
			assert.Equal(t, config.DriverPostgres, cfg.DB.Driver)
			assert.Equal(t, "db.local", cfg.DB.Host)
			assert.Equal(t, 6543, cfg.DB.Port)
			assert.Equal(t, "app", cfg.DB.User)
			assert.Equal(t, "shop", cfg.DB.Name)
			assert.Equal(t, "disable", cfg.DB.SSLMode)
			assert.Equal(t, "schema_log", cfg.Ledger.Table)
			assert.Equal(t, "meta", cfg.Ledger.Schema)
			assert.Equal(t, "debug", cfg.Log.Level)
			assert.True(t, cfg.Log.Pretty)
		},
	},
	/* s2 */ {
		name:     "test s2: should read an explicit config file",
		content:  "db:\n  driver: mysql\n  dsn: root:secret@tcp(127.0.0.1:3306)/app\n",
		explicit: true,
		check: func(t *testing.T, cfg config.Config) {
			t.Helper()
			assert.Equal(t, config.DriverMySQL, cfg.DB.Driver)
			assert.Equal(t, "root:secret@tcp(127.0.0.1:3306)/app", cfg.DB.DSN)
		},
	},

	// -- error tests --------
	/* e0 */ {
		name:        "test e0: should reject an unknown driver",
		content:     "db:\n  driver: oracle\n",
		expectError: true,
	},
	/* e1 */ {
		name:        "test e1: should reject an empty ledger table",
		content:     "ledger:\n  table: \"\"\n",
		expectError: true,
	},
	/* e2 */ {
		name:        "test e2: should reject malformed yaml",
		content:     "db: [\n",
		expectError: true,
	},
	/* e3 */ {
		name:        "test e3: should reject a missing database name",
		content:     "db:\n  name: \"\"\n",
		expectError: true,
	},
}

func TestLoad(t *testing.T) {
	t.Parallel()
	t.Logf("Should load configuration from the work directory.")

	for _, test := range loadTestsTable {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			explicitPath := ""
			if test.content != "" {
				path := writeConfig(t, dir, test.content)
				if test.explicit {
					explicitPath = path
					dir = t.TempDir()
				}
			}

			cfg, err := config.Load(dir, explicitPath)

			if test.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			test.check(t, cfg)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load(t.TempDir(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvironmentOverrides(t *testing.T) { //nolint:paralleltest
	dir := t.TempDir()
	writeConfig(t, dir, "db:\n  driver: sqlite\n  name: file.db\n")

	t.Setenv("KAITEN_DB_DRIVER", "postgres")
	t.Setenv("KAITEN_DB_DSN", "postgres://app@db.local/shop")
	t.Setenv("KAITEN_LEDGER_TABLE", "from_env")

	cfg, err := config.Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, config.DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "postgres://app@db.local/shop", cfg.DB.DSN)
	assert.Equal(t, "file.db", cfg.DB.Name)
	assert.Equal(t, "from_env", cfg.Ledger.Table)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		DB:     config.DBConfig{Driver: config.DriverSQLite, Name: "x.db", Port: 70000},
		Ledger: config.LedgerConfig{Table: "t"},
	}
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)

	cfg.DB.Port = 0
	assert.NoError(t, cfg.Validate())
}
