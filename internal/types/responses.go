package types

import "time"

type ExecutionResponse struct {
	ID            uint      `json:"id"`
	Symbol        string    `json:"symbol"`
	Quantity      int64     `json:"quantity"`
	Price         float64   `json:"price"`
	Commission    float64   `json:"commission"`
	Tax           float64   `json:"tax"`
	Exchange      string    `json:"exchange"`
	ExecutionTime time.Time `json:"executionTime"`
}

type OrderResponse struct {
	ID             uint                `json:"id"`
	OrderID        string              `json:"orderId"`
	AccountID      uint                `json:"accountId"`
	Symbol         string              `json:"symbol"`
	OrderType      OrderType           `json:"orderType"`
	Side           OrderSide           `json:"side"`
	Quantity       int64               `json:"quantity"`
	Price          *float64            `json:"price,omitempty"`
	StopPrice      *float64            `json:"stopPrice,omitempty"`
	Status         OrderStatus         `json:"status"`
	FilledQuantity int64               `json:"filledQuantity"`
	AveragePrice   *float64            `json:"averagePrice,omitempty"`
	Notes          string              `json:"notes,omitempty"`
	RejectReason   string              `json:"rejectReason,omitempty"`
	OrderDate      time.Time           `json:"orderDate"`
	Executions     []ExecutionResponse `json:"executions"`
}

type OrderStatsResponse struct {
	TotalOrders     int64   `json:"totalOrders"`
	PendingOrders   int64   `json:"pendingOrders"`
	FilledOrders    int64   `json:"filledOrders"`
	CancelledOrders int64   `json:"cancelledOrders"`
	TotalBuyOrders  int64   `json:"totalBuyOrders"`
	TotalSellOrders int64   `json:"totalSellOrders"`
	SuccessRate     float64 `json:"successRate"`
	TotalVolume     int64   `json:"totalVolume"`
	TotalValue      float64 `json:"totalValue"`
}

type PositionResponse struct {
	ID           uint      `json:"id"`
	AccountID    uint      `json:"accountId"`
	Symbol       string    `json:"symbol"`
	Quantity     int64     `json:"quantity"`
	AveragePrice float64   `json:"averagePrice"`
	CurrentPrice *float64  `json:"currentPrice,omitempty"`
	UnrealizedPL float64   `json:"unrealizedPL"`
	RealizedPL   float64   `json:"realizedPL"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

type TradingAccountResponse struct {
	ID            uint          `json:"id"`
	UserID        uint          `json:"userId"`
	AccountNumber string        `json:"accountNumber"`
	AccountName   string        `json:"accountName"`
	BrokerName    string        `json:"brokerName"`
	Balance       float64       `json:"balance"`
	AvailableCash float64       `json:"availableCash"`
	Status        AccountStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func NewExecutionResponse(e Execution) ExecutionResponse {
	return ExecutionResponse{
		ID:            e.ID,
		Symbol:        e.Symbol,
		Quantity:      e.Quantity,
		Price:         e.Price,
		Commission:    e.Commission,
		Tax:           e.Tax,
		Exchange:      e.Exchange,
		ExecutionTime: e.ExecutionTime,
	}
}

func NewOrderResponse(o *Order) OrderResponse {
	executions := make([]ExecutionResponse, 0, len(o.Executions))
	for _, e := range o.Executions {
		executions = append(executions, NewExecutionResponse(e))
	}
	return OrderResponse{
		ID:             o.ID,
		OrderID:        o.OrderID,
		AccountID:      o.AccountID,
		Symbol:         o.Symbol,
		OrderType:      o.OrderType,
		Side:           o.Side,
		Quantity:       o.Quantity,
		Price:          o.Price,
		StopPrice:      o.StopPrice,
		Status:         o.Status,
		FilledQuantity: o.FilledQuantity,
		AveragePrice:   o.AveragePrice,
		Notes:          o.Notes,
		RejectReason:   o.RejectReason,
		OrderDate:      o.OrderDate,
		Executions:     executions,
	}
}

func NewOrderResponses(orders []Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, NewOrderResponse(&orders[i]))
	}
	return out
}

func NewPositionResponse(p *Position) PositionResponse {
	return PositionResponse{
		ID:           p.ID,
		AccountID:    p.AccountID,
		Symbol:       p.Symbol,
		Quantity:     p.Quantity,
		AveragePrice: p.AveragePrice,
		CurrentPrice: p.CurrentPrice,
		UnrealizedPL: p.UnrealizedPL,
		RealizedPL:   p.RealizedPL,
		LastUpdated:  p.LastUpdated,
	}
}

func NewPositionResponses(positions []Position) []PositionResponse {
	out := make([]PositionResponse, 0, len(positions))
	for i := range positions {
		out = append(out, NewPositionResponse(&positions[i]))
	}
	return out
}

func NewTradingAccountResponse(a *TradingAccount) TradingAccountResponse {
	return TradingAccountResponse{
		ID:            a.ID,
		UserID:        a.UserID,
		AccountNumber: a.AccountNumber,
		AccountName:   a.AccountName,
		BrokerName:    a.BrokerName,
		Balance:       a.Balance,
		AvailableCash: a.AvailableCash,
		Status:        a.Status,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func NewTradingAccountResponses(accounts []TradingAccount) []TradingAccountResponse {
	out := make([]TradingAccountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, NewTradingAccountResponse(&accounts[i]))
	}
	return out
}
