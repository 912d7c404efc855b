package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/klear-trading/internal/accounts"
	"github.com/ksred/klear-trading/internal/config"
	"github.com/ksred/klear-trading/internal/events"
	"github.com/ksred/klear-trading/internal/matching"
	"github.com/ksred/klear-trading/internal/positions"
	"github.com/ksred/klear-trading/internal/pricing"
	"github.com/ksred/klear-trading/internal/settlement"
	"github.com/ksred/klear-trading/internal/types"
	"github.com/ksred/klear-trading/pkg/money"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service accepts orders, evaluates them once against the reference price
// and settles fills
type Service struct {
	gormDB         *gorm.DB
	db             *Database
	exchange       *matching.Exchange
	settlement     *settlement.Service
	oracle         pricing.Oracle
	fillRetries    int
	idempotencyTTL time.Duration
}

func NewService(gormDB *gorm.DB, cfg config.TradingConfig, oracle pricing.Oracle) *Service {
	retries := cfg.FillRetries
	if retries < 1 {
		retries = 1
	}
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Service{
		gormDB:         gormDB,
		db:             NewDatabase(gormDB),
		exchange:       matching.NewExchange(cfg.Exchange, cfg.CommissionRate, cfg.TaxRate),
		settlement:     settlement.NewService(cfg.CreditRealizedPL),
		oracle:         oracle,
		fillRetries:    retries,
		idempotencyTTL: ttl,
	}
}

// CreateOrder validates and persists an order, then evaluates it for a fill
// at the reference price. The returned order is in its post-evaluation state
// with its executions. A repeated idempotencyKey returns the order it first
// created.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest, idempotencyKey string) (*types.Order, error) {
	logger := log.With().
		Str("service", "trading").
		Uint("account_id", req.AccountID).
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Str("order_type", string(req.OrderType)).
		Logger()

	if idempotencyKey != "" {
		if order, err := s.replay(idempotencyKey); err != nil || order != nil {
			if order != nil {
				logger.Info().Str("idempotency_key", idempotencyKey).Str("order_id", order.OrderID).Msg("returning order for repeated idempotency key")
			}
			return order, err
		}
	}

	order := &types.Order{
		AccountID: req.AccountID,
		Symbol:    strings.ToUpper(strings.TrimSpace(req.Symbol)),
		OrderType: req.OrderType,
		Side:      req.Side,
		Quantity:  req.Quantity,
		Price:     req.Price,
		StopPrice: req.StopPrice,
		Notes:     req.Notes,
	}
	if err := validateShape(order); err != nil {
		return nil, err
	}

	account, err := accounts.Find(s.gormDB, order.AccountID)
	if err != nil {
		return nil, err
	}
	if account.Status != types.AccountActive {
		return nil, types.NotFound("trading account %d not found or not active", order.AccountID)
	}

	price, err := s.oracle.Price(ctx, order.Symbol, req.CurrentPrice)
	if err != nil {
		return nil, err
	}

	if err := s.checkCover(order, account, order.Quantity, estimatePrice(order, price)); err != nil {
		return nil, err
	}

	now := time.Now()
	order.OrderID = uuid.New().String()
	order.Status = types.OrderPending
	order.OrderDate = now
	order.UpdatedAt = now

	if err := s.db.CreateOrderWithIdempotency(order, idempotencyKey, s.idempotencyTTL); err != nil {
		if idempotencyKey != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost a race with a request carrying the same key
			if existing, rerr := s.replay(idempotencyKey); rerr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, types.Internal(err, "failed to create order")
	}

	logger = logger.With().Str("order_id", order.OrderID).Float64("reference_price", price).Logger()
	logger.Info().Int64("quantity", order.Quantity).Msg("order accepted")

	if err := s.process(logger, order, price); err != nil {
		return nil, err
	}

	return s.db.GetOrder(order.ID)
}

func (s *Service) replay(key string) (*types.Order, error) {
	record, err := s.db.GetIdempotencyRecord(key)
	if err != nil {
		return nil, types.Internal(err, "failed to check idempotency key")
	}
	if record == nil {
		return nil, nil
	}
	return s.db.GetOrder(record.ResourceID)
}

// validateShape checks the fields that do not depend on stored state
func validateShape(order *types.Order) error {
	switch {
	case order.Symbol == "":
		return types.BadRequest("symbol is required")
	case !order.OrderType.Valid():
		return types.BadRequest("invalid orderType %q", order.OrderType)
	case !order.Side.Valid():
		return types.BadRequest("invalid side %q", order.Side)
	case order.Quantity <= 0:
		return types.BadRequest("quantity must be a positive integer")
	}

	if order.OrderType.RequiresPrice() && order.Price == nil {
		return types.BadRequest("price is required for %s orders", order.OrderType)
	}
	if order.OrderType.RequiresStopPrice() && order.StopPrice == nil {
		return types.BadRequest("stopPrice is required for %s orders", order.OrderType)
	}
	if order.Price != nil && *order.Price <= 0 {
		return types.BadRequest("price must be positive")
	}
	if order.StopPrice != nil && *order.StopPrice <= 0 {
		return types.BadRequest("stopPrice must be positive")
	}
	return nil
}

// estimatePrice is the per-share cost a BUY is checked against: the limit
// price when the order carries one, else the reference price
func estimatePrice(order *types.Order, reference float64) float64 {
	if order.OrderType != types.OrderTypeMarket && order.Price != nil {
		return *order.Price
	}
	return reference
}

// checkCover verifies cash for a BUY or shares for a SELL of quantity.
// price is only used for BUY orders; zero skips the cash check.
func (s *Service) checkCover(order *types.Order, account *types.TradingAccount, quantity int64, price float64) error {
	if order.Side == types.SideBuy {
		if price <= 0 {
			return nil
		}
		cost := money.Float(money.TradeValue(quantity, price))
		if !money.GTE(account.AvailableCash, cost) {
			return types.BadRequest("insufficient available cash: required %.2f, available %.2f", cost, account.AvailableCash)
		}
		return nil
	}

	position, err := positions.FindBySymbol(s.gormDB, order.AccountID, order.Symbol)
	if err != nil {
		return types.Internal(err, "failed to load position")
	}
	if position == nil || position.Quantity < quantity {
		held := int64(0)
		if position != nil {
			held = position.Quantity
		}
		return types.BadRequest("insufficient position: selling %d %s, holding %d", quantity, order.Symbol, held)
	}
	return nil
}

// process evaluates order once. An ineligible order rests PENDING; an
// eligible one is filled in full at the reference price.
func (s *Service) process(logger zerolog.Logger, order *types.Order, price float64) error {
	fill, ok := s.exchange.Match(order, price)
	if !ok {
		logger.Info().Msg("order not marketable at reference price, left pending")
		return nil
	}

	var err error
	for attempt := 1; attempt <= s.fillRetries; attempt++ {
		err = s.gormDB.Transaction(func(tx *gorm.DB) error {
			return s.recordExecution(tx, order, fill)
		})
		if err == nil || !errors.Is(err, types.ErrConcurrentUpdate) {
			break
		}
		logger.Warn().Err(err).Int("attempt", attempt).Msg("fill lost a concurrent update, retrying")
	}

	switch {
	case err == nil:
		logger.Info().
			Int64("quantity", fill.Quantity).
			Float64("price", fill.Price).
			Float64("commission", fill.Commission).
			Float64("tax", fill.Tax).
			Msg("order filled")
		return nil
	case errors.Is(err, types.ErrInsufficientFunds), errors.Is(err, types.ErrInsufficientPosition):
		return s.reject(logger, order, err)
	case errors.Is(err, types.ErrOrderNotPending):
		logger.Warn().Msg("order left pending before it could fill")
		return types.Conflict("order %s is no longer pending", order.OrderID)
	default:
		return s.reconcile(logger, order, err)
	}
}

// recordExecution books fill inside tx: the execution row, the order
// transition to FILLED, cash and position settlement, and the event
func (s *Service) recordExecution(tx *gorm.DB, order *types.Order, fill *matching.Fill) error {
	execution := &types.Execution{
		OrderID:       order.ID,
		Symbol:        order.Symbol,
		Quantity:      fill.Quantity,
		Price:         fill.Price,
		Commission:    fill.Commission,
		Tax:           fill.Tax,
		Exchange:      s.exchange.ID,
		ExecutionTime: time.Now(),
	}
	if err := tx.Create(execution).Error; err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}

	if err := TransitionPending(tx, order.ID, map[string]interface{}{
		"status":          types.OrderFilled,
		"filled_quantity": fill.Quantity,
		"average_price":   fill.Price,
	}); err != nil {
		return err
	}

	result, err := s.settlement.Settle(tx, order, fill)
	if err != nil {
		return err
	}

	event := orderEvent(order, "")
	event.Price = fill.Price
	event.Commission = fill.Commission
	event.Tax = fill.Tax
	event.RealizedPL = result.RealizedPL
	event.ExecutionID = execution.ID
	return events.Enqueue(tx, events.TypeOrderFilled, order.OrderID, event)
}

// reject cancels an order whose fill failed a business check at settlement
func (s *Service) reject(logger zerolog.Logger, order *types.Order, cause error) error {
	message := "insufficient available cash at settlement"
	if errors.Is(cause, types.ErrInsufficientPosition) {
		message = "insufficient position at settlement"
	}

	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		if err := TransitionPending(tx, order.ID, map[string]interface{}{
			"status":        types.OrderCancelled,
			"reject_reason": message,
		}); err != nil {
			return err
		}
		return events.Enqueue(tx, events.TypeOrderRejected, order.OrderID, orderEvent(order, cause.Error()))
	})
	if err != nil {
		return s.reconcile(logger, order, errors.Join(cause, err))
	}

	logger.Warn().Err(cause).Msg("order rejected at settlement")
	return types.BadRequest("%s", message).Wrap(cause)
}

// reconcile leaves the order PENDING and records that its fill needs
// attention
func (s *Service) reconcile(logger zerolog.Logger, order *types.Order, cause error) error {
	logger.Error().Err(cause).Msg("fill failed, order requires reconciliation")

	if err := events.Enqueue(s.gormDB, events.TypeReconciliationRequired, order.OrderID, orderEvent(order, cause.Error())); err != nil {
		logger.Error().Err(err).Msg("failed to record reconciliation event")
	}
	return types.Internal(cause, fmt.Sprintf("order %s could not be settled and requires reconciliation", order.OrderID))
}

func orderEvent(order *types.Order, reason string) events.OrderEvent {
	return events.OrderEvent{
		OrderID:    order.ID,
		OrderRef:   order.OrderID,
		AccountID:  order.AccountID,
		Symbol:     order.Symbol,
		Side:       string(order.Side),
		OrderType:  string(order.OrderType),
		Quantity:   order.Quantity,
		Reason:     reason,
		OccurredAt: time.Now(),
	}
}
