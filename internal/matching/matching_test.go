package matching

import (
	"testing"

	"github.com/ksred/klear-trading/internal/types"
	"github.com/stretchr/testify/assert"
)

func order(orderType types.OrderType, side types.OrderSide, price, stop float64) *types.Order {
	o := &types.Order{OrderID: "test", OrderType: orderType, Side: side, Quantity: 100}
	if price > 0 {
		o.Price = types.Float(price)
	}
	if stop > 0 {
		o.StopPrice = types.Float(stop)
	}
	return o
}

func TestEligible(t *testing.T) {
	tests := []struct {
		name  string
		order *types.Order
		price float64
		want  bool
	}{
		{"market buy", order(types.OrderTypeMarket, types.SideBuy, 0, 0), 45000, true},
		{"market sell", order(types.OrderTypeMarket, types.SideSell, 0, 0), 1, true},

		{"limit buy below", order(types.OrderTypeLimit, types.SideBuy, 100, 0), 99, true},
		{"limit buy at", order(types.OrderTypeLimit, types.SideBuy, 100, 0), 100, true},
		{"limit buy above", order(types.OrderTypeLimit, types.SideBuy, 100, 0), 101, false},
		{"limit sell above", order(types.OrderTypeLimit, types.SideSell, 100, 0), 101, true},
		{"limit sell at", order(types.OrderTypeLimit, types.SideSell, 100, 0), 100, true},
		{"limit sell below", order(types.OrderTypeLimit, types.SideSell, 100, 0), 99, false},

		{"stop buy triggered", order(types.OrderTypeStop, types.SideBuy, 0, 100), 100, true},
		{"stop buy not triggered", order(types.OrderTypeStop, types.SideBuy, 0, 100), 99, false},
		{"stop sell triggered", order(types.OrderTypeStop, types.SideSell, 0, 100), 95, true},
		{"stop sell not triggered", order(types.OrderTypeStop, types.SideSell, 0, 100), 101, false},

		// buy stop 100, limit 105: fills only in [100, 105]
		{"stop limit buy inside band", order(types.OrderTypeStopLimit, types.SideBuy, 105, 100), 102, true},
		{"stop limit buy trigger only", order(types.OrderTypeStopLimit, types.SideBuy, 105, 100), 106, false},
		{"stop limit buy limit only", order(types.OrderTypeStopLimit, types.SideBuy, 105, 100), 99, false},
		// sell stop 100, limit 95: fills only in [95, 100]
		{"stop limit sell inside band", order(types.OrderTypeStopLimit, types.SideSell, 95, 100), 97, true},
		{"stop limit sell trigger only", order(types.OrderTypeStopLimit, types.SideSell, 95, 100), 94, false},
		{"stop limit sell limit only", order(types.OrderTypeStopLimit, types.SideSell, 95, 100), 101, false},

		{"limit without price", order(types.OrderTypeLimit, types.SideBuy, 0, 0), 1, false},
		{"unknown type", order("ICEBERG", types.SideBuy, 0, 0), 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Eligible(tt.order, tt.price))
		})
	}
}

func TestMatchPricesFullQuantityAtReference(t *testing.T) {
	exchange := NewExchange("HOSE", 0.0015, 0.001)

	fill, ok := exchange.Match(order(types.OrderTypeLimit, types.SideBuy, 46000, 0), 45000)
	assert.True(t, ok)
	assert.Equal(t, int64(100), fill.Quantity)
	assert.Equal(t, 45000.0, fill.Price)
	assert.Equal(t, 4500000.0, fill.TradeValue)
	assert.Equal(t, 6750.0, fill.Commission)
	assert.Equal(t, 4500.0, fill.Tax)
	assert.Equal(t, 11250.0, fill.Fees())

	_, ok = exchange.Match(order(types.OrderTypeLimit, types.SideBuy, 44000, 0), 45000)
	assert.False(t, ok)
}

func TestPriceSellFees(t *testing.T) {
	fill := NewExchange("HOSE", 0.0015, 0.001).Price(40, 50000)
	assert.Equal(t, 3000.0, fill.Commission)
	assert.Equal(t, 2000.0, fill.Tax)
}
