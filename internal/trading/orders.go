package trading

import (
	"errors"
	"time"

	"github.com/ksred/klear-trading/internal/accounts"
	"github.com/ksred/klear-trading/internal/types"
	"github.com/ksred/klear-trading/pkg/money"
	"github.com/rs/zerolog/log"
)

const dateLayout = "2006-01-02"

func (s *Service) GetOrder(id uint) (*types.Order, error) {
	return s.db.GetOrder(id)
}

func (s *Service) GetOrdersByAccount(accountID uint) ([]types.Order, error) {
	return s.db.GetOrdersByAccount(accountID)
}

func (s *Service) GetOrdersByStatus(accountID uint, status types.OrderStatus) ([]types.Order, error) {
	if !status.Valid() {
		return nil, types.BadRequest("invalid order status %q", status)
	}
	return s.db.GetOrdersByStatus(accountID, status)
}

// GetOrdersByDateRange lists orders placed between two YYYY-MM-DD dates,
// both days included
func (s *Service) GetOrdersByDateRange(accountID uint, startDate, endDate string) ([]types.Order, error) {
	start, err := time.ParseInLocation(dateLayout, startDate, time.Local)
	if err != nil {
		return nil, types.BadRequest("startDate must be formatted YYYY-MM-DD")
	}
	end, err := time.ParseInLocation(dateLayout, endDate, time.Local)
	if err != nil {
		return nil, types.BadRequest("endDate must be formatted YYYY-MM-DD")
	}
	if end.Before(start) {
		return nil, types.BadRequest("endDate must not be before startDate")
	}
	return s.db.GetOrdersByDateRange(accountID, start, end.AddDate(0, 0, 1).Add(-time.Nanosecond))
}

func (s *Service) GetOrdersBySymbol(accountID uint, symbol string) ([]types.Order, error) {
	return s.db.GetOrdersBySymbol(accountID, symbol)
}

// GetOrderStats summarizes an account's orders. SuccessRate is the share of
// completed orders that filled, in percent.
func (s *Service) GetOrderStats(accountID uint) (*types.OrderStatsResponse, error) {
	orders, err := s.db.GetOrdersForStats(accountID)
	if err != nil {
		return nil, types.Internal(err, "failed to load order statistics")
	}

	stats := &types.OrderStatsResponse{TotalOrders: int64(len(orders))}
	value := money.FromFloat(0)
	for _, o := range orders {
		switch o.Status {
		case types.OrderPending:
			stats.PendingOrders++
		case types.OrderFilled:
			stats.FilledOrders++
		case types.OrderCancelled:
			stats.CancelledOrders++
		}
		if o.Side == types.SideBuy {
			stats.TotalBuyOrders++
		} else {
			stats.TotalSellOrders++
		}
		stats.TotalVolume += o.Quantity
		if o.AveragePrice != nil {
			value = value.Add(money.TradeValue(o.Quantity, *o.AveragePrice))
		}
	}

	if completed := stats.FilledOrders + stats.CancelledOrders; completed > 0 {
		stats.SuccessRate = money.Round(float64(stats.FilledOrders)/float64(completed)*100, 2)
	}
	stats.TotalValue = money.Float(value.Round(0))
	return stats, nil
}

// CancelOrder cancels a PENDING order. Nothing was reserved for it, so the
// ledger is untouched.
func (s *Service) CancelOrder(id uint) (*types.Order, error) {
	order, err := s.db.GetOrder(id)
	if err != nil {
		return nil, err
	}
	if order.Status != types.OrderPending {
		return nil, types.NotFound("pending order %d not found", id)
	}

	if err := s.db.CancelOrder(order, "cancelled by request"); err != nil {
		if errors.Is(err, types.ErrOrderNotPending) {
			return nil, types.NotFound("pending order %d not found", id)
		}
		return nil, types.Internal(err, "failed to cancel order")
	}

	log.Info().Str("service", "trading").Str("order_id", order.OrderID).Msg("order cancelled")
	return s.db.GetOrder(id)
}

// UpdateOrder patches a PENDING order. Cover is re-checked whenever the
// quantity or price changes; the order is not re-evaluated for a fill.
func (s *Service) UpdateOrder(id uint, req UpdateOrderRequest) (*types.Order, error) {
	order, err := s.db.GetOrder(id)
	if err != nil {
		return nil, err
	}
	if order.Status != types.OrderPending {
		return nil, types.NotFound("pending order %d not found", id)
	}

	patched := *order
	updates := map[string]interface{}{}
	if req.Quantity != nil {
		patched.Quantity = *req.Quantity
		updates["quantity"] = *req.Quantity
	}
	if req.Price != nil {
		patched.Price = req.Price
		updates["price"] = *req.Price
	}
	if req.StopPrice != nil {
		patched.StopPrice = req.StopPrice
		updates["stop_price"] = *req.StopPrice
	}
	if req.Notes != nil {
		patched.Notes = *req.Notes
		updates["notes"] = *req.Notes
	}
	if len(updates) == 0 {
		return order, nil
	}

	if err := validateShape(&patched); err != nil {
		return nil, err
	}

	if req.Quantity != nil || req.Price != nil {
		account, err := accounts.Find(s.gormDB, order.AccountID)
		if err != nil {
			return nil, err
		}
		// without a limit price there is no stored estimate to check against
		if err := s.checkCover(&patched, account, patched.Quantity, estimatePrice(&patched, 0)); err != nil {
			return nil, err
		}
	}

	if err := s.db.UpdatePendingOrder(id, updates); err != nil {
		if errors.Is(err, types.ErrOrderNotPending) {
			return nil, types.NotFound("pending order %d not found", id)
		}
		return nil, types.Internal(err, "failed to update order")
	}

	log.Info().
		Str("service", "trading").
		Str("order_id", order.OrderID).
		Interface("fields", updates).
		Msg("order updated")

	return s.db.GetOrder(id)
}
