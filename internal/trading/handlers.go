package trading

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-trading/internal/types"
	"github.com/ksred/klear-trading/pkg/response"
)

// GinHandlers contains HTTP handlers for order endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateOrderHandler handles POST /orders. An Idempotency-Key header makes
// retries of the same request return the original order.
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		order, err := h.service.CreateOrder(c.Request.Context(), req, key)
		if err != nil {
			response.Handle(c, "", nil, err)
			return
		}
		response.Success(c, "Order placed successfully", types.NewOrderResponse(order))
	}
}

func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.PathID(c, "id")
		if !ok {
			return
		}

		order, err := h.service.GetOrder(id)
		if err != nil {
			response.Handle(c, "", nil, err)
			return
		}
		response.Success(c, "Order retrieved successfully", types.NewOrderResponse(order))
	}
}

func (h *GinHandlers) CancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.PathID(c, "id")
		if !ok {
			return
		}

		order, err := h.service.CancelOrder(id)
		if err != nil {
			response.Handle(c, "", nil, err)
			return
		}
		response.Success(c, "Order cancelled successfully", types.NewOrderResponse(order))
	}
}

func (h *GinHandlers) UpdateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.PathID(c, "id")
		if !ok {
			return
		}

		var req UpdateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		order, err := h.service.UpdateOrder(id, req)
		if err != nil {
			response.Handle(c, "", nil, err)
			return
		}
		response.Success(c, "Order updated successfully", types.NewOrderResponse(order))
	}
}

func (h *GinHandlers) GetOrdersByAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, ok := response.PathID(c, "accountId")
		if !ok {
			return
		}

		orders, err := h.service.GetOrdersByAccount(accountID)
		h.respondList(c, "Orders retrieved successfully", orders, err)
	}
}

func (h *GinHandlers) GetOrdersByStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, ok := response.PathID(c, "accountId")
		if !ok {
			return
		}

		status := types.OrderStatus(strings.ToUpper(c.Param("status")))
		orders, err := h.service.GetOrdersByStatus(accountID, status)
		h.respondList(c, "Orders with status "+string(status)+" retrieved successfully", orders, err)
	}
}

func (h *GinHandlers) GetOrdersByDateRangeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, ok := response.PathID(c, "accountId")
		if !ok {
			return
		}

		startDate, endDate := c.Query("startDate"), c.Query("endDate")
		if startDate == "" || endDate == "" {
			response.BadRequest(c, "startDate and endDate are required")
			return
		}

		orders, err := h.service.GetOrdersByDateRange(accountID, startDate, endDate)
		h.respondList(c, "Orders from "+startDate+" to "+endDate+" retrieved successfully", orders, err)
	}
}

func (h *GinHandlers) GetOrdersBySymbolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, ok := response.PathID(c, "accountId")
		if !ok {
			return
		}

		symbol := c.Param("symbol")
		orders, err := h.service.GetOrdersBySymbol(accountID, symbol)
		h.respondList(c, "Orders for "+strings.ToUpper(symbol)+" retrieved successfully", orders, err)
	}
}

func (h *GinHandlers) GetOrderStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, ok := response.PathID(c, "accountId")
		if !ok {
			return
		}

		stats, err := h.service.GetOrderStats(accountID)
		response.Handle(c, "Order statistics retrieved successfully", stats, err)
	}
}

func (h *GinHandlers) respondList(c *gin.Context, message string, orders []types.Order, err error) {
	if err != nil {
		response.Handle(c, "", nil, err)
		return
	}
	response.Success(c, message, types.NewOrderResponses(orders))
}
