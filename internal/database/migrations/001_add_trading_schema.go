package migrations

import (
	"github.com/ksred/klear-trading/internal/types"
	"gorm.io/gorm"
)

// AddTradingSchema creates the ledger, order, execution and position tables
// along with the indexes the order queries rely on
func AddTradingSchema(db *gorm.DB) error {
	err := db.AutoMigrate(
		&types.TradingAccount{},
		&types.Order{},
		&types.Execution{},
		&types.Position{},
		&types.IdempotencyRecord{},
	)
	if err != nil {
		return err
	}

	indexes := []string{
		// Status listing and stats per account
		`CREATE INDEX IF NOT EXISTS idx_orders_account_status
		 ON orders(account_id, status)`,

		// Date range listing per account
		`CREATE INDEX IF NOT EXISTS idx_orders_account_order_date
		 ON orders(account_id, order_date)`,

		// Case-insensitive symbol lookups per account
		`CREATE INDEX IF NOT EXISTS idx_orders_account_symbol_upper
		 ON orders(account_id, UPPER(symbol))`,

		`CREATE INDEX IF NOT EXISTS idx_positions_account_last_updated
		 ON positions(account_id, last_updated)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
