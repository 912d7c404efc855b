package positions

import (
	"errors"
	"fmt"
	"time"

	"github.com/ksred/klear-trading/internal/types"
	"github.com/ksred/klear-trading/pkg/money"
	"gorm.io/gorm"
)

// Apply books a fill of quantity at price against the order's position
// inside tx and returns the realized P&L of the fill.
//
// A BUY opens the position or moves its average cost. A SELL realizes
// quantity * (price - averagePrice) and leaves averagePrice unchanged; a
// fully sold position is kept at quantity zero.
func Apply(tx *gorm.DB, order *types.Order, quantity int64, price float64) (float64, error) {
	position, err := FindBySymbol(tx, order.AccountID, order.Symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to load position: %w", err)
	}

	now := time.Now()

	if order.Side == types.SideBuy {
		if position == nil {
			position = &types.Position{
				AccountID:    order.AccountID,
				Symbol:       order.Symbol,
				Quantity:     quantity,
				AveragePrice: price,
				LastUpdated:  now,
			}
			if err := tx.Create(position).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return 0, fmt.Errorf("position %s: %w", order.Symbol, types.ErrConcurrentUpdate)
				}
				return 0, fmt.Errorf("failed to open position: %w", err)
			}
			return 0, nil
		}

		avg := money.WeightedAverage(position.Quantity, position.AveragePrice, quantity, price)
		return 0, save(tx, position, map[string]interface{}{
			"quantity":      position.Quantity + quantity,
			"average_price": avg,
			"last_updated":  now,
		})
	}

	if position == nil || position.Quantity < quantity {
		held := int64(0)
		if position != nil {
			held = position.Quantity
		}
		return 0, fmt.Errorf("%w: selling %d %s, holding %d", types.ErrInsufficientPosition, quantity, order.Symbol, held)
	}

	realized := money.PnL(quantity, price, position.AveragePrice)
	return realized, save(tx, position, map[string]interface{}{
		"quantity":     position.Quantity - quantity,
		"realized_pl":  money.Add(position.RealizedPL, realized),
		"last_updated": now,
	})
}

// save writes updates with a compare-and-swap on version
func save(tx *gorm.DB, position *types.Position, updates map[string]interface{}) error {
	updates["version"] = position.Version + 1

	result := tx.Model(&types.Position{}).
		Where("id = ? AND version = ?", position.ID, position.Version).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update position %d: %w", position.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("position %d: %w", position.ID, types.ErrConcurrentUpdate)
	}
	return nil
}
