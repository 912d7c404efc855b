package positions

import (
	"errors"
	"strings"
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

func (d *Database) GetPosition(id uint) (*types.Position, error) {
	var position types.Position
	if err := d.db.First(&position, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("position %d not found", id)
		}
		return nil, err
	}
	return &position, nil
}

// GetPositionsByAccount lists positions, most recently touched first
func (d *Database) GetPositionsByAccount(accountID uint) ([]types.Position, error) {
	var positions []types.Position
	if err := d.db.Where("account_id = ?", accountID).
		Order("last_updated DESC").
		Order("id DESC").
		Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

func (d *Database) DeletePosition(id uint) error {
	result := d.db.Delete(&types.Position{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.NotFound("position %d not found", id)
	}
	return nil
}

// MarkPosition stores a valuation. Version is left alone so marking never
// races a fill.
func (d *Database) MarkPosition(position *types.Position, price, unrealized float64) error {
	now := time.Now()
	if err := d.db.Model(&types.Position{}).
		Where("id = ?", position.ID).
		Updates(map[string]interface{}{
			"current_price": price,
			"unrealized_pl": unrealized,
			"last_updated":  now,
		}).Error; err != nil {
		return err
	}
	position.CurrentPrice = types.Float(price)
	position.UnrealizedPL = unrealized
	position.LastUpdated = now
	return nil
}

// FindBySymbol returns the account's position in symbol through db, nil
// when the account never held it
func FindBySymbol(db *gorm.DB, accountID uint, symbol string) (*types.Position, error) {
	var position types.Position
	err := db.Where("account_id = ? AND symbol = ?", accountID, strings.ToUpper(symbol)).First(&position).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &position, nil
}
