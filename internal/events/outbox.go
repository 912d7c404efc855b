package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event types written by the order engine
const (
	TypeOrderFilled            = "order.filled"
	TypeOrderCancelled         = "order.cancelled"
	TypeOrderRejected          = "order.rejected"
	TypeReconciliationRequired = "order.reconciliation_required"
)

const (
	StatusPending   = "PENDING"
	StatusPublished = "PUBLISHED"
	StatusFailed    = "FAILED"
)

// OutboxMessage is an event persisted in the same transaction as the state
// change it describes, waiting to be relayed
type OutboxMessage struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	EventType   string    `gorm:"type:varchar(64);index;not null"`
	AggregateID string    `gorm:"type:varchar(64);index;not null"`
	Payload     string    `gorm:"type:text;not null"`
	Status      string    `gorm:"type:varchar(16);not null"`
	Attempts    int       `gorm:"not null;default:0"`
	LastError   string
	CreatedAt   time.Time `gorm:"not null"`
	PublishedAt *time.Time
}

// OrderEvent is the payload of every order lifecycle event
type OrderEvent struct {
	OrderID     uint      `json:"orderId"`
	OrderRef    string    `json:"orderRef"`
	AccountID   uint      `json:"accountId"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	OrderType   string    `json:"orderType"`
	Quantity    int64     `json:"quantity"`
	Price       float64   `json:"price,omitempty"`
	Commission  float64   `json:"commission,omitempty"`
	Tax         float64   `json:"tax,omitempty"`
	RealizedPL  float64   `json:"realizedPL,omitempty"`
	ExecutionID uint      `json:"executionId,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Enqueue writes an event using db, which should be the caller's
// transaction so the event commits or rolls back with the state change
func Enqueue(db *gorm.DB, eventType, aggregateID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	msg := &OutboxMessage{
		ID:          uuid.New().String(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     string(body),
		Status:      StatusPending,
		CreatedAt:   time.Now(),
	}
	if err := db.Create(msg).Error; err != nil {
		return fmt.Errorf("failed to enqueue %s event: %w", eventType, err)
	}
	return nil
}
