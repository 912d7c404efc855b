package trading

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-trading/internal/database/dbtest"
	"github.com/ksred/klear-trading/internal/pricing"
	"github.com/ksred/klear-trading/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *types.TradingAccount) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.Open(t)
	account := dbtest.Account(t, db, 10_000_000)
	handlers := NewGinHandlers(NewService(db, tradingConfig, pricing.ClientOracle{}))

	r := gin.New()
	orders := r.Group("/api/v1/orders")
	orders.POST("", handlers.CreateOrderHandler())
	orders.GET("/:id", handlers.GetOrderHandler())
	orders.DELETE("/:id/cancel", handlers.CancelOrderHandler())
	orders.GET("/account/:accountId/stats", handlers.GetOrderStatsHandler())
	orders.GET("/account/:accountId/date-range", handlers.GetOrdersByDateRangeHandler())
	return r, account
}

func serve(r http.Handler, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestCreateOrderHandler(t *testing.T) {
	r, account := newTestRouter(t)

	body := `{"accountId":` + jsonUint(account.ID) + `,"symbol":"VIC","orderType":"MARKET","side":"BUY","quantity":100,"currentPrice":45000}`
	w, env := serve(r, http.MethodPost, "/api/v1/orders", body, map[string]string{"Idempotency-Key": "abc"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.Success)

	var order types.OrderResponse
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, types.OrderFilled, order.Status)
	require.Len(t, order.Executions, 1)
	assert.Equal(t, 6750.0, order.Executions[0].Commission)
	assert.Contains(t, string(env.Data), `"filledQuantity":100`)

	// same key, same order
	_, replay := serve(r, http.MethodPost, "/api/v1/orders", body, map[string]string{"Idempotency-Key": "abc"})
	var again types.OrderResponse
	require.NoError(t, json.Unmarshal(replay.Data, &again))
	assert.Equal(t, order.ID, again.ID)

	w, env = serve(r, http.MethodGet, "/api/v1/orders/"+jsonUint(order.ID), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestCreateOrderHandlerErrors(t *testing.T) {
	r, account := newTestRouter(t)

	w, env := serve(r, http.MethodPost, "/api/v1/orders", `{"symbol":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)

	body := `{"accountId":` + jsonUint(account.ID) + `,"symbol":"VIC","orderType":"LIMIT","side":"BUY","quantity":1,"currentPrice":45000}`
	w, env = serve(r, http.MethodPost, "/api/v1/orders", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)

	body = `{"accountId":999,"symbol":"VIC","orderType":"MARKET","side":"BUY","quantity":1,"currentPrice":45000}`
	w, env = serve(r, http.MethodPost, "/api/v1/orders", body, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestOrderLookupHandlers(t *testing.T) {
	r, account := newTestRouter(t)

	w, _ := serve(r, http.MethodGet, "/api/v1/orders/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := serve(r, http.MethodGet, "/api/v1/orders/42", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)

	w, _ = serve(r, http.MethodDelete, "/api/v1/orders/42/cancel", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = serve(r, http.MethodGet, "/api/v1/orders/account/"+jsonUint(account.ID)+"/stats", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"totalOrders":0,"pendingOrders":0,"filledOrders":0,"cancelledOrders":0,"totalBuyOrders":0,"totalSellOrders":0,"successRate":0,"totalVolume":0,"totalValue":0}`, string(env.Data))

	w, _ = serve(r, http.MethodGet, "/api/v1/orders/account/"+jsonUint(account.ID)+"/date-range?startDate=2026-01-01", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func jsonUint(v uint) string {
	b, _ := json.Marshal(v)
	return string(b)
}
