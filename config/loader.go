package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads kaiten.yaml from workDir, or the file at explicitPath when it is
// set. A missing kaiten.yaml in workDir is not an error. Environment variables
// prefixed with KAITEN_ override file values, e.g. KAITEN_DB_DSN.
func Load(workDir, explicitPath string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.SetConfigName("kaiten")
		v.AddConfigPath(workDir)
	}

	setDefaults(v)

	v.SetEnvPrefix("KAITEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.driver", DriverSQLite)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.host", "127.0.0.1")
	v.SetDefault("db.port", 0)
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "kaiten.db")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("ledger.table", "kaiten_revisions")
	v.SetDefault("ledger.schema", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}
