package accounts

import (
	"fmt"
	"time"

	"github.com/ksred/klear-trading/internal/types"
	"github.com/ksred/klear-trading/pkg/money"
	"gorm.io/gorm"
)

// Adjust moves balance and availableCash of the account by delta inside tx.
// required is the amount availableCash must still cover at write time, zero
// for credits. The row is written with a compare-and-swap on version, so a
// concurrent writer makes it fail with types.ErrConcurrentUpdate.
func Adjust(tx *gorm.DB, accountID uint, delta, required float64) (*types.TradingAccount, error) {
	account, err := Find(tx, accountID)
	if err != nil {
		return nil, err
	}

	if required > 0 && !money.GTE(account.AvailableCash, required) {
		return nil, fmt.Errorf("%w: required %.2f, available %.2f", types.ErrInsufficientFunds, required, account.AvailableCash)
	}

	balance := money.Add(account.Balance, delta)
	available := money.Add(account.AvailableCash, delta)
	now := time.Now()

	result := tx.Model(&types.TradingAccount{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]interface{}{
			"balance":        balance,
			"available_cash": available,
			"version":        account.Version + 1,
			"updated_at":     now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update trading account %d: %w", account.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("trading account %d: %w", account.ID, types.ErrConcurrentUpdate)
	}

	account.Balance = balance
	account.AvailableCash = available
	account.Version++
	account.UpdatedAt = now
	return account, nil
}
