package database

import (
	"fmt"
	"strings"

	"github.com/ksred/klear-trading/internal/config"
	"github.com/ksred/klear-trading/internal/database/migrations"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open initializes a GORM connection for cfg and runs all migrations
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn(cfg)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := migrations.AddTradingSchema(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.AddOutbox(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// dsn appends the driver options every connection needs. Transactions start
// with BEGIN IMMEDIATE so concurrent writers queue on the busy timeout
// instead of failing on lock upgrade.
func dsn(cfg config.DatabaseConfig) string {
	if strings.Contains(cfg.DSN, "?") {
		return cfg.DSN
	}
	timeout := cfg.BusyTimeout
	if timeout <= 0 {
		timeout = 5000
	}
	return fmt.Sprintf("%s?_busy_timeout=%d&_txlock=immediate&_foreign_keys=on", cfg.DSN, timeout)
}
