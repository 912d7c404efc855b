package trading

import "github.com/ksred/klear-trading/internal/types"

// CreateOrderRequest is the body of POST /orders. CurrentPrice is the
// reference price the order is evaluated against when pricing runs in
// client mode.
type CreateOrderRequest struct {
	AccountID    uint            `json:"accountId" binding:"required"`
	Symbol       string          `json:"symbol" binding:"required"`
	OrderType    types.OrderType `json:"orderType" binding:"required"`
	Side         types.OrderSide `json:"side" binding:"required"`
	Quantity     int64           `json:"quantity"`
	Price        *float64        `json:"price"`
	StopPrice    *float64        `json:"stopPrice"`
	Notes        string          `json:"notes"`
	CurrentPrice float64         `json:"currentPrice"`
}

// UpdateOrderRequest patches a PENDING order. Nil fields are left as is.
type UpdateOrderRequest struct {
	Quantity  *int64   `json:"quantity"`
	Price     *float64 `json:"price"`
	StopPrice *float64 `json:"stopPrice"`
	Notes     *string  `json:"notes"`
}

const resourceTypeOrder = "order"
