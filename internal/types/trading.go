package types

import (
	"time"
)

type AccountStatus string

const (
	AccountActive AccountStatus = "ACTIVE"
	AccountLocked AccountStatus = "LOCKED"
	AccountClosed AccountStatus = "CLOSED"
)

type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderFilled    OrderStatus = "FILLED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Valid reports whether s is a known account status
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountActive, AccountLocked, AccountClosed:
		return true
	}
	return false
}

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStop, OrderTypeStopLimit:
		return true
	}
	return false
}

// RequiresPrice reports whether the order type carries a limit price
func (t OrderType) RequiresPrice() bool {
	return t == OrderTypeLimit || t == OrderTypeStopLimit
}

// RequiresStopPrice reports whether the order type carries a trigger price
func (t OrderType) RequiresStopPrice() bool {
	return t == OrderTypeStop || t == OrderTypeStopLimit
}

func (s OrderSide) Valid() bool {
	return s == SideBuy || s == SideSell
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderFilled, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s
func (s OrderStatus) Terminal() bool {
	return s == OrderFilled || s == OrderCancelled
}

// TradingAccount is the cash ledger of one brokerage account.
// Balance and AvailableCash move together; Version guards concurrent writers.
type TradingAccount struct {
	ID            uint          `gorm:"primaryKey"`
	UserID        uint          `gorm:"index;not null"`
	AccountNumber string        `gorm:"uniqueIndex;not null"`
	AccountName   string        `gorm:"not null"`
	BrokerName    string
	Balance       float64       `gorm:"not null;default:0"`
	AvailableCash float64       `gorm:"not null;default:0"`
	Status        AccountStatus `gorm:"type:varchar(16);index;not null"`
	Version       int64         `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Order struct {
	ID             uint        `gorm:"primaryKey"`
	OrderID        string      `gorm:"uniqueIndex;not null"`
	AccountID      uint        `gorm:"index;not null"`
	Symbol         string      `gorm:"index;not null"`
	OrderType      OrderType   `gorm:"type:varchar(16);not null"`
	Side           OrderSide   `gorm:"type:varchar(8);not null"`
	Quantity       int64       `gorm:"not null"`
	Price          *float64
	StopPrice      *float64
	Status         OrderStatus `gorm:"type:varchar(16);index;not null"`
	FilledQuantity int64       `gorm:"not null;default:0"`
	AveragePrice   *float64
	Notes          string
	RejectReason   string
	OrderDate      time.Time   `gorm:"index;not null"`
	UpdatedAt      time.Time
	Executions     []Execution `gorm:"foreignKey:OrderID;references:ID"`
}

// Execution is one immutable fill of an order
type Execution struct {
	ID            uint      `gorm:"primaryKey"`
	OrderID       uint      `gorm:"index;not null"`
	Symbol        string    `gorm:"not null"`
	Quantity      int64     `gorm:"not null"`
	Price         float64   `gorm:"not null"`
	Commission    float64   `gorm:"not null"`
	Tax           float64   `gorm:"not null"`
	Exchange      string    `gorm:"not null"`
	ExecutionTime time.Time `gorm:"index;not null"`
}

// Position is the net long holding of a symbol in an account
type Position struct {
	ID           uint      `gorm:"primaryKey"`
	AccountID    uint      `gorm:"uniqueIndex:idx_positions_account_symbol;not null"`
	Symbol       string    `gorm:"uniqueIndex:idx_positions_account_symbol;not null"`
	Quantity     int64     `gorm:"not null;default:0"`
	AveragePrice float64   `gorm:"not null;default:0"`
	CurrentPrice *float64
	UnrealizedPL float64   `gorm:"not null;default:0"`
	RealizedPL   float64   `gorm:"not null;default:0"`
	Version      int64     `gorm:"not null;default:0"`
	LastUpdated  time.Time `gorm:"index"`
}

type IdempotencyRecord struct {
	ID             uint      `gorm:"primaryKey"`
	IdempotencyKey string    `gorm:"uniqueIndex;not null"`
	ResourceID     uint      `gorm:"not null"`
	ResourceType   string    `gorm:"not null"`
	ExpiresAt      time.Time `gorm:"not null"`
	CreatedAt      time.Time
}

// Float returns a pointer to v, for optional price fields
func Float(v float64) *float64 {
	return &v
}

// Value dereferences an optional price, returning 0 when unset
func Value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
