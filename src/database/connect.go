package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"perpexecutor/src/storage"
)

// MainDB is the primary read/write database connection used by the application.
var MainDB *gorm.DB

// InitMainDB initializes the main database connection and runs
// migrations. Postgres is used when POSTGRES_DSN is set; otherwise the
// store falls back to a local sqlite file, which is all the client-side
// ledger and settings records need.
func InitMainDB() error {
	config := GetConfig()

	gormConfig := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
	}

	var (
		db  *gorm.DB
		err error
	)
	if config.PostgresDSN != "" {
		db, err = gorm.Open(postgres.Open(config.PostgresDSN), gormConfig)
	} else {
		db, err = gorm.Open(sqlite.Open(config.SQLitePath), gormConfig)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if config.PostgresDSN != "" {
		sqlDB, derr := db.DB()
		if derr != nil {
			return fmt.Errorf("failed to get DB from GORM: %w", derr)
		}
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(1 * time.Hour)
	}

	// Assign to the global variable only after a successful connection.
	MainDB = db

	logrus.Info("[database] MainDB connection established")

	if err := MainDB.AutoMigrate(&storage.KVRecord{}); err != nil {
		return fmt.Errorf("failed to run migrations on MainDB: %w", err)
	}

	logrus.Info("[database] MainDB migrations completed")

	return nil
}
