package matching

import (
	"github.com/ksred/klear-trading/internal/types"
	"github.com/ksred/klear-trading/pkg/money"
	"github.com/rs/zerolog/log"
)

// Exchange is the simulated venue fills are booked on
type Exchange struct {
	ID             string
	CommissionRate float64 // fraction of trade value
	TaxRate        float64 // fraction of trade value
}

// Fill is the outcome of evaluating an order against a reference price
type Fill struct {
	Quantity   int64
	Price      float64
	TradeValue float64
	Commission float64
	Tax        float64
}

// Fees returns commission plus tax
func (f Fill) Fees() float64 {
	return money.Add(f.Commission, f.Tax)
}

func NewExchange(id string, commissionRate, taxRate float64) *Exchange {
	return &Exchange{
		ID:             id,
		CommissionRate: commissionRate,
		TaxRate:        taxRate,
	}
}

// Eligible reports whether order fills at the reference price. Orders are
// evaluated once; an ineligible order stays PENDING.
func Eligible(order *types.Order, price float64) bool {
	switch order.OrderType {
	case types.OrderTypeMarket:
		return true
	case types.OrderTypeLimit:
		return limitReached(order, price)
	case types.OrderTypeStop:
		return stopTriggered(order, price)
	case types.OrderTypeStopLimit:
		return stopTriggered(order, price) && limitReached(order, price)
	}
	return false
}

// limitReached: BUY at or below the limit, SELL at or above it
func limitReached(order *types.Order, price float64) bool {
	if order.Price == nil {
		return false
	}
	if order.Side == types.SideBuy {
		return money.LTE(price, *order.Price)
	}
	return money.GTE(price, *order.Price)
}

// stopTriggered: BUY once price rises to the stop, SELL once it falls to it
func stopTriggered(order *types.Order, price float64) bool {
	if order.StopPrice == nil {
		return false
	}
	if order.Side == types.SideBuy {
		return money.GTE(price, *order.StopPrice)
	}
	return money.LTE(price, *order.StopPrice)
}

// Match evaluates order at price and, when eligible, prices a full fill of
// the order quantity at the reference price
func (e *Exchange) Match(order *types.Order, price float64) (*Fill, bool) {
	logger := log.With().
		Str("exchange_id", e.ID).
		Str("order_id", order.OrderID).
		Str("order_type", string(order.OrderType)).
		Str("side", string(order.Side)).
		Float64("reference_price", price).
		Logger()

	if !Eligible(order, price) {
		logger.Debug().
			Float64("limit_price", types.Value(order.Price)).
			Float64("stop_price", types.Value(order.StopPrice)).
			Msg("order not eligible at reference price")
		return nil, false
	}

	fill := e.Price(order.Quantity, price)
	logger.Debug().
		Int64("quantity", fill.Quantity).
		Float64("commission", fill.Commission).
		Float64("tax", fill.Tax).
		Msg("order eligible for fill")

	return fill, true
}

// Price computes trade value and fees for quantity shares at price
func (e *Exchange) Price(quantity int64, price float64) *Fill {
	value := money.TradeValue(quantity, price)
	return &Fill{
		Quantity:   quantity,
		Price:      price,
		TradeValue: money.Float(value),
		Commission: money.Float(money.ApplyRate(value, e.CommissionRate)),
		Tax:        money.Float(money.ApplyRate(value, e.TaxRate)),
	}
}
