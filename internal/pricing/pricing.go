package pricing

import (
	"context"
	"strings"

	"github.com/ksred/klear-trading/internal/config"
	"github.com/ksred/klear-trading/internal/types"
)

// Oracle resolves the reference price an order is evaluated against.
// submitted is the currentPrice the client sent, zero when absent.
type Oracle interface {
	Price(ctx context.Context, symbol string, submitted float64) (float64, error)
}

// ClientOracle trusts the price supplied with the request
type ClientOracle struct{}

func (ClientOracle) Price(_ context.Context, _ string, submitted float64) (float64, error) {
	if submitted <= 0 {
		return 0, types.BadRequest("currentPrice must be a positive number")
	}
	return submitted, nil
}

// StaticOracle quotes from a server-side table and ignores the client price
type StaticOracle struct {
	quotes       map[string]float64
	defaultPrice float64
}

func NewStaticOracle(quotes map[string]float64, defaultPrice float64) *StaticOracle {
	normalized := make(map[string]float64, len(quotes))
	for symbol, price := range quotes {
		normalized[strings.ToUpper(strings.TrimSpace(symbol))] = price
	}
	return &StaticOracle{quotes: normalized, defaultPrice: defaultPrice}
}

func (o *StaticOracle) Price(_ context.Context, symbol string, _ float64) (float64, error) {
	price, ok := o.quotes[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		price = o.defaultPrice
	}
	if price <= 0 {
		return 0, types.BadRequest("no reference price available for %s", symbol)
	}
	return price, nil
}

// NewOracle builds the oracle selected by cfg.Mode
func NewOracle(cfg config.PricingConfig) Oracle {
	if cfg.Mode == config.PricingModeServer {
		return NewStaticOracle(cfg.Quotes, cfg.DefaultPrice)
	}
	return ClientOracle{}
}
