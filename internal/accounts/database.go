package accounts

import (
	"errors"
	"fmt"
	"time"

	"github.com/ksred/klear-trading/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateAccount assigns the next free ACCT-<millis> number and inserts account
func (d *Database) CreateAccount(account *types.TradingAccount) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		millis := time.Now().UnixMilli()
		for {
			number := fmt.Sprintf("ACCT-%d", millis)
			var count int64
			if err := tx.Model(&types.TradingAccount{}).Where("account_number = ?", number).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				account.AccountNumber = number
				break
			}
			millis++
		}
		return tx.Create(account).Error
	})
}

func (d *Database) GetAccount(id uint) (*types.TradingAccount, error) {
	return Find(d.db, id)
}

func (d *Database) GetAccountsByUser(userID uint) ([]types.TradingAccount, error) {
	var accounts []types.TradingAccount
	if err := d.db.Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (d *Database) UpdateAccount(account *types.TradingAccount, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	updates["version"] = gorm.Expr("version + 1")
	return d.db.Model(account).Updates(updates).Error
}

// DeleteAccount removes an account nothing references
func (d *Database) DeleteAccount(id uint) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if _, err := Find(tx, id); err != nil {
			return err
		}

		var orders, positions int64
		if err := tx.Model(&types.Order{}).Where("account_id = ?", id).Count(&orders).Error; err != nil {
			return err
		}
		if err := tx.Model(&types.Position{}).Where("account_id = ?", id).Count(&positions).Error; err != nil {
			return err
		}
		if orders > 0 || positions > 0 {
			return types.Conflict("trading account %d still has %d orders and %d positions", id, orders, positions)
		}

		return tx.Delete(&types.TradingAccount{}, id).Error
	})
}

// Find loads an account through db, which may be a transaction
func Find(db *gorm.DB, id uint) (*types.TradingAccount, error) {
	var account types.TradingAccount
	if err := db.First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("trading account %d not found", id)
		}
		return nil, err
	}
	return &account, nil
}
