package positions

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-trading/internal/accounts"
	"github.com/ksred/klear-trading/internal/types"
	"github.com/ksred/klear-trading/pkg/money"
	"github.com/ksred/klear-trading/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service exposes position queries and valuation. Quantities and cost basis
// only change through Apply during a fill.
type Service struct {
	gormDB *gorm.DB
	db     *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		gormDB: gormDB,
		db:     NewDatabase(gormDB),
	}
}

func (s *Service) GetPositionsByAccount(accountID uint) ([]types.Position, error) {
	if _, err := accounts.Find(s.gormDB, accountID); err != nil {
		return nil, err
	}
	return s.db.GetPositionsByAccount(accountID)
}

func (s *Service) GetPosition(id uint) (*types.Position, error) {
	return s.db.GetPosition(id)
}

func (s *Service) DeletePosition(id uint) error {
	if err := s.db.DeletePosition(id); err != nil {
		return err
	}
	log.Warn().Str("service", "positions").Uint("position_id", id).Msg("position deleted")
	return nil
}

// CalculateUnrealizedPL marks every position of the account that has a
// positive price in prices, keyed by symbol. Positions without a price keep
// their previous valuation.
func (s *Service) CalculateUnrealizedPL(accountID uint, prices map[string]float64) ([]types.Position, error) {
	positions, err := s.GetPositionsByAccount(accountID)
	if err != nil {
		return nil, err
	}

	normalized := make(map[string]float64, len(prices))
	for symbol, price := range prices {
		normalized[strings.ToUpper(strings.TrimSpace(symbol))] = price
	}

	marked := 0
	for i := range positions {
		p := &positions[i]
		price, ok := normalized[p.Symbol]
		if !ok || price <= 0 {
			continue
		}
		unrealized := money.PnL(p.Quantity, price, p.AveragePrice)
		if err := s.db.MarkPosition(p, price, unrealized); err != nil {
			return nil, types.Internal(err, "failed to update unrealized P&L")
		}
		marked++
	}

	log.Info().
		Str("service", "positions").
		Uint("account_id", accountID).
		Int("marked", marked).
		Int("positions", len(positions)).
		Msg("positions marked to market")

	return positions, nil
}

// MarkRequest is the body of POST /positions/account/:accountId/mark
type MarkRequest struct {
	Prices map[string]float64 `json:"prices" binding:"required"`
}

// GinHandlers contains HTTP handlers for position endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

func (h *GinHandlers) GetPositionsByAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, ok := response.PathID(c, "accountId")
		if !ok {
			return
		}

		positions, err := h.service.GetPositionsByAccount(accountID)
		if err != nil {
			response.Handle(c, "", nil, err)
			return
		}
		response.Success(c, "Positions retrieved successfully", types.NewPositionResponses(positions))
	}
}

func (h *GinHandlers) GetPositionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.PathID(c, "id")
		if !ok {
			return
		}

		position, err := h.service.GetPosition(id)
		if err != nil {
			response.Handle(c, "", nil, err)
			return
		}
		response.Success(c, "Position retrieved successfully", types.NewPositionResponse(position))
	}
}

func (h *GinHandlers) DeletePositionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.PathID(c, "id")
		if !ok {
			return
		}

		response.Handle(c, "Position deleted successfully", nil, h.service.DeletePosition(id))
	}
}

func (h *GinHandlers) MarkPositionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, ok := response.PathID(c, "accountId")
		if !ok {
			return
		}

		var req MarkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		positions, err := h.service.CalculateUnrealizedPL(accountID, req.Prices)
		if err != nil {
			response.Handle(c, "", nil, err)
			return
		}
		response.Success(c, "Unrealized P&L updated successfully", types.NewPositionResponses(positions))
	}
}
