package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Postgres when a DSN is set, local sqlite file otherwise.
	PostgresDSN  string `envconfig:"POSTGRES_DSN"`
	SQLitePath   string `envconfig:"SQLITE_PATH" default:"perpexecutor.db"`
	GormLogLevel int    `envconfig:"GORM_LOG_LEVEL" default:"2"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
