package accounts

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-trading/internal/auth"
	"github.com/ksred/klear-trading/internal/types"
	"github.com/ksred/klear-trading/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service manages trading accounts and their cash ledger
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// OpenAccount creates an ACTIVE account for userID funded with the initial
// deposit
func (s *Service) OpenAccount(userID uint, req OpenAccountRequest) (*types.TradingAccount, error) {
	name := strings.TrimSpace(req.AccountName)
	if len(name) < 3 {
		return nil, types.BadRequest("accountName must be at least 3 characters")
	}
	if req.InitialDeposit < 0 {
		return nil, types.BadRequest("initialDeposit must not be negative")
	}

	account := &types.TradingAccount{
		UserID:        userID,
		AccountName:   name,
		BrokerName:    strings.TrimSpace(req.BrokerName),
		Balance:       req.InitialDeposit,
		AvailableCash: req.InitialDeposit,
		Status:        types.AccountActive,
	}
	if err := s.db.CreateAccount(account); err != nil {
		return nil, types.Internal(err, "failed to open trading account")
	}

	log.Info().
		Str("service", "accounts").
		Uint("account_id", account.ID).
		Uint("user_id", userID).
		Str("account_number", account.AccountNumber).
		Float64("initial_deposit", req.InitialDeposit).
		Msg("trading account opened")

	return account, nil
}

func (s *Service) GetAccount(id uint) (*types.TradingAccount, error) {
	return s.db.GetAccount(id)
}

// GetAccountsByUser lists a user's accounts, newest first
func (s *Service) GetAccountsByUser(userID uint) ([]types.TradingAccount, error) {
	return s.db.GetAccountsByUser(userID)
}

func (s *Service) UpdateAccount(id uint, req UpdateAccountRequest) (*types.TradingAccount, error) {
	account, err := s.db.GetAccount(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.AccountName != nil {
		name := strings.TrimSpace(*req.AccountName)
		if len(name) < 3 {
			return nil, types.BadRequest("accountName must be at least 3 characters")
		}
		updates["account_name"] = name
	}
	if req.BrokerName != nil {
		updates["broker_name"] = strings.TrimSpace(*req.BrokerName)
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, types.BadRequest("invalid account status %q", *req.Status)
		}
		updates["status"] = *req.Status
	}
	if len(updates) == 0 {
		return account, nil
	}

	if err := s.db.UpdateAccount(account, updates); err != nil {
		return nil, types.Internal(err, "failed to update trading account")
	}

	log.Info().
		Str("service", "accounts").
		Uint("account_id", id).
		Interface("fields", updates).
		Msg("trading account updated")

	return s.db.GetAccount(id)
}

func (s *Service) DeleteAccount(id uint) error {
	if err := s.db.DeleteAccount(id); err != nil {
		return err
	}
	log.Info().Str("service", "accounts").Uint("account_id", id).Msg("trading account deleted")
	return nil
}

// GinHandlers contains HTTP handlers for account endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

func (h *GinHandlers) OpenAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserID(c)
		if !ok {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		var req OpenAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		account, err := h.service.OpenAccount(userID, req)
		if err != nil {
			response.Handle(c, "", nil, err)
			return
		}
		response.Success(c, "Trading account created successfully", types.NewTradingAccountResponse(account))
	}
}

func (h *GinHandlers) GetAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.PathID(c, "id")
		if !ok {
			return
		}

		account, err := h.service.GetAccount(id)
		if err != nil {
			response.Handle(c, "", nil, err)
			return
		}
		response.Success(c, "Trading account retrieved successfully", types.NewTradingAccountResponse(account))
	}
}

func (h *GinHandlers) GetAccountsByUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := response.PathID(c, "userId")
		if !ok {
			return
		}

		accounts, err := h.service.GetAccountsByUser(userID)
		if err != nil {
			response.Handle(c, "", nil, err)
			return
		}
		response.Success(c, "Trading accounts retrieved successfully", types.NewTradingAccountResponses(accounts))
	}
}

func (h *GinHandlers) UpdateAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.PathID(c, "id")
		if !ok {
			return
		}

		var req UpdateAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		account, err := h.service.UpdateAccount(id, req)
		if err != nil {
			response.Handle(c, "", nil, err)
			return
		}
		response.Success(c, "Trading account updated successfully", types.NewTradingAccountResponse(account))
	}
}

func (h *GinHandlers) DeleteAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.PathID(c, "id")
		if !ok {
			return
		}

		response.Handle(c, "Trading account deleted successfully", nil, h.service.DeleteAccount(id))
	}
}
