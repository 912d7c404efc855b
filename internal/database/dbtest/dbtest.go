// Package dbtest opens throwaway migrated databases for package tests.
package dbtest

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ksred/klear-trading/internal/config"
	"github.com/ksred/klear-trading/internal/database"
	"github.com/ksred/klear-trading/internal/types"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Open returns a fresh SQLite database in t's temp dir, closed on cleanup
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		DSN:          filepath.Join(t.TempDir(), "trading.db"),
		MaxOpenConns: 1,
		BusyTimeout:  5000,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// Account inserts an ACTIVE account holding cash
func Account(t *testing.T, db *gorm.DB, cash float64) *types.TradingAccount {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(&types.TradingAccount{}).Count(&n).Error)

	account := &types.TradingAccount{
		UserID:        1,
		AccountNumber: fmt.Sprintf("TEST-%d", n+1),
		AccountName:   "Test account",
		Balance:       cash,
		AvailableCash: cash,
		Status:        types.AccountActive,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}
