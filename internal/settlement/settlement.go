package settlement

import (
	"fmt"

	"github.com/ksred/klear-trading/internal/accounts"
	"github.com/ksred/klear-trading/internal/matching"
	"github.com/ksred/klear-trading/internal/positions"
	"github.com/ksred/klear-trading/internal/types"
	"github.com/ksred/klear-trading/pkg/money"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Result describes the ledger and position effect of a settled fill
type Result struct {
	Account    *types.TradingAccount
	CashDelta  float64
	RealizedPL float64
}

type Service struct {
	creditRealizedPL bool
}

// NewService returns a settlement service. With creditRealizedPL a SELL
// also credits its realized P&L to cash on top of the sale proceeds.
func NewService(creditRealizedPL bool) *Service {
	return &Service{creditRealizedPL: creditRealizedPL}
}

// Settle moves cash for fill and updates the position inside tx. A BUY must
// still be covered by available cash at write time. Any error leaves tx to
// be rolled back by the caller.
func (s *Service) Settle(tx *gorm.DB, order *types.Order, fill *matching.Fill) (*Result, error) {
	logger := log.With().
		Str("service", "settlement").
		Str("order_id", order.OrderID).
		Uint("account_id", order.AccountID).
		Str("side", string(order.Side)).
		Logger()

	var (
		delta    float64
		required float64
	)
	if order.Side == types.SideBuy {
		delta = -money.Add(fill.TradeValue, fill.Fees())
		required = fill.TradeValue
	} else {
		delta = money.Sub(fill.TradeValue, fill.Fees())
	}

	account, err := accounts.Adjust(tx, order.AccountID, delta, required)
	if err != nil {
		return nil, fmt.Errorf("cash settlement failed: %w", err)
	}

	realized, err := positions.Apply(tx, order, fill.Quantity, fill.Price)
	if err != nil {
		return nil, fmt.Errorf("position settlement failed: %w", err)
	}

	if s.creditRealizedPL && realized != 0 {
		account, err = accounts.Adjust(tx, order.AccountID, realized, 0)
		if err != nil {
			return nil, fmt.Errorf("realized P&L credit failed: %w", err)
		}
		delta = money.Add(delta, realized)
	}

	logger.Debug().
		Float64("cash_delta", delta).
		Float64("realized_pl", realized).
		Float64("available_cash", account.AvailableCash).
		Msg("fill settled")

	return &Result{
		Account:    account,
		CashDelta:  delta,
		RealizedPL: realized,
	}, nil
}
