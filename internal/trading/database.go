package trading

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ksred/klear-trading/internal/events"
	"github.com/ksred/klear-trading/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetOrder loads an order with its executions
func (d *Database) GetOrder(id uint) (*types.Order, error) {
	var order types.Order
	if err := d.db.Preload("Executions").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("order %d not found", id)
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) listOrders(query *gorm.DB) ([]types.Order, error) {
	var orders []types.Order
	if err := query.Preload("Executions").
		Order("order_date DESC").
		Order("id DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *Database) GetOrdersByAccount(accountID uint) ([]types.Order, error) {
	return d.listOrders(d.db.Where("account_id = ?", accountID))
}

func (d *Database) GetOrdersByStatus(accountID uint, status types.OrderStatus) ([]types.Order, error) {
	return d.listOrders(d.db.Where("account_id = ? AND status = ?", accountID, status))
}

// GetOrdersByDateRange lists orders placed in [start, end]
func (d *Database) GetOrdersByDateRange(accountID uint, start, end time.Time) ([]types.Order, error) {
	return d.listOrders(d.db.Where("account_id = ? AND order_date BETWEEN ? AND ?", accountID, start, end))
}

// GetOrdersBySymbol matches symbol case-insensitively
func (d *Database) GetOrdersBySymbol(accountID uint, symbol string) ([]types.Order, error) {
	return d.listOrders(d.db.Where("account_id = ? AND UPPER(symbol) = ?", accountID, strings.ToUpper(symbol)))
}

// GetOrdersForStats loads the fields the statistics need, without executions
func (d *Database) GetOrdersForStats(accountID uint) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Select("id", "side", "status", "quantity", "average_price").
		Where("account_id = ?", accountID).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// CreateOrderWithIdempotency inserts order and, when key is set, the
// idempotency record pointing at it in one transaction. An expired record
// holding the same key is replaced.
func (d *Database) CreateOrderWithIdempotency(order *types.Order, key string, ttl time.Duration) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		if key == "" {
			return nil
		}

		now := time.Now()
		if err := tx.Where("idempotency_key = ? AND expires_at <= ?", key, now).
			Delete(&types.IdempotencyRecord{}).Error; err != nil {
			return fmt.Errorf("failed to purge expired idempotency record: %w", err)
		}

		record := types.IdempotencyRecord{
			IdempotencyKey: key,
			ResourceID:     order.ID,
			ResourceType:   resourceTypeOrder,
			ExpiresAt:      now.Add(ttl),
		}
		return tx.Create(&record).Error
	})
}

// GetIdempotencyRecord returns the live record for key, nil when absent or
// expired
func (d *Database) GetIdempotencyRecord(key string) (*types.IdempotencyRecord, error) {
	var record types.IdempotencyRecord
	err := d.db.Where("idempotency_key = ? AND expires_at > ?", key, time.Now()).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// TransitionPending moves a PENDING order to status. It fails with
// types.ErrOrderNotPending when the order left PENDING first.
func TransitionPending(tx *gorm.DB, orderID uint, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	result := tx.Model(&types.Order{}).
		Where("id = ? AND status = ?", orderID, types.OrderPending).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update order %d: %w", orderID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("order %d: %w", orderID, types.ErrOrderNotPending)
	}
	return nil
}

// CancelOrder cancels a PENDING order and records the event
func (d *Database) CancelOrder(order *types.Order, reason string) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := TransitionPending(tx, order.ID, map[string]interface{}{
			"status": types.OrderCancelled,
		}); err != nil {
			return err
		}
		return events.Enqueue(tx, events.TypeOrderCancelled, order.OrderID, orderEvent(order, reason))
	})
}

// UpdatePendingOrder applies updates only while the order is PENDING
func (d *Database) UpdatePendingOrder(orderID uint, updates map[string]interface{}) error {
	return TransitionPending(d.db, orderID, updates)
}
