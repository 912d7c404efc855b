package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-trading/internal/config"
	"github.com/ksred/klear-trading/internal/database/dbtest"
	"github.com/ksred/klear-trading/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	t      *testing.T
	router http.Handler
	token  string
}

func (c *client) do(method, path string, body any, out any) int {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil && env.Success {
		require.NoError(c.t, json.Unmarshal(env.Data, out))
	}
	return w.Code
}

func login(t *testing.T, router http.Handler, key, secret string) *client {
	t.Helper()
	c := &client{t: t, router: router}
	var token struct {
		Token string `json:"token"`
	}
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/auth/token", map[string]string{"apiKey": key, "apiSecret": secret}, &token))
	c.token = token.Token
	return c
}

func TestTradingFlowOverHTTP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.RateLimit = config.RateLimitConfig{} // unlimited
	router := New(cfg, dbtest.Open(t)).Router

	anonymous := &client{t: t, router: router}
	assert.Equal(t, http.StatusUnauthorized, anonymous.do(http.MethodGet, "/api/v1/accounts/1", nil, nil))

	trader := login(t, router, "test-api-key", "test-api-secret")
	admin := login(t, router, "test-admin-key", "test-admin-secret")

	var account types.TradingAccountResponse
	require.Equal(t, http.StatusCreated, trader.do(http.MethodPost, "/api/v1/accounts",
		map[string]any{"accountName": "Main", "brokerName": "SSI", "initialDeposit": 10_000_000}, &account))
	assert.Equal(t, uint(1), account.UserID)

	var buy types.OrderResponse
	require.Equal(t, http.StatusCreated, trader.do(http.MethodPost, "/api/v1/orders", map[string]any{
		"accountId": account.ID, "symbol": "VIC", "orderType": "MARKET", "side": "BUY", "quantity": 100, "currentPrice": 45000,
	}, &buy))
	assert.Equal(t, types.OrderFilled, buy.Status)

	var sell types.OrderResponse
	require.Equal(t, http.StatusCreated, trader.do(http.MethodPost, "/api/v1/orders", map[string]any{
		"accountId": account.ID, "symbol": "VIC", "orderType": "LIMIT", "side": "SELL", "quantity": 40, "price": 50000, "currentPrice": 50000,
	}, &sell))
	assert.Equal(t, types.OrderFilled, sell.Status)

	accountPath := fmt.Sprintf("/api/v1/accounts/%d", account.ID)
	require.Equal(t, http.StatusOK, trader.do(http.MethodGet, accountPath, nil, &account))
	assert.Equal(t, 7_483_750.0, account.Balance)
	assert.Equal(t, 7_483_750.0, account.AvailableCash)

	var held []types.PositionResponse
	require.Equal(t, http.StatusOK, trader.do(http.MethodGet, fmt.Sprintf("/api/v1/positions/account/%d", account.ID), nil, &held))
	require.Len(t, held, 1)
	assert.Equal(t, int64(60), held[0].Quantity)
	assert.Equal(t, 200_000.0, held[0].RealizedPL)

	var marked []types.PositionResponse
	require.Equal(t, http.StatusCreated, trader.do(http.MethodPost, fmt.Sprintf("/api/v1/positions/account/%d/mark", account.ID),
		map[string]any{"prices": map[string]float64{"VIC": 47000}}, &marked))
	require.Len(t, marked, 1)
	assert.Equal(t, 120_000.0, marked[0].UnrealizedPL)

	var stats types.OrderStatsResponse
	require.Equal(t, http.StatusOK, trader.do(http.MethodGet, fmt.Sprintf("/api/v1/orders/account/%d/stats", account.ID), nil, &stats))
	assert.Equal(t, int64(2), stats.FilledOrders)
	assert.Equal(t, 100.0, stats.SuccessRate)

	assert.Equal(t, http.StatusConflict, trader.do(http.MethodDelete, accountPath, nil, nil))

	positionPath := fmt.Sprintf("/api/v1/positions/%d", held[0].ID)
	assert.Equal(t, http.StatusForbidden, trader.do(http.MethodDelete, positionPath, nil, nil))
	assert.Equal(t, http.StatusOK, admin.do(http.MethodDelete, positionPath, nil, nil))
	assert.Equal(t, http.StatusNotFound, trader.do(http.MethodGet, positionPath, nil, nil))
}

func TestServerPricingIgnoresClientPrice(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Pricing.Mode = config.PricingModeServer
	cfg.RateLimit = config.RateLimitConfig{}
	router := New(cfg, dbtest.Open(t)).Router

	trader := login(t, router, "test-api-key", "test-api-secret")

	var account types.TradingAccountResponse
	require.Equal(t, http.StatusCreated, trader.do(http.MethodPost, "/api/v1/accounts",
		map[string]any{"accountName": "Main", "initialDeposit": 10_000_000}, &account))

	var order types.OrderResponse
	require.Equal(t, http.StatusCreated, trader.do(http.MethodPost, "/api/v1/orders", map[string]any{
		"accountId": account.ID, "symbol": "FPT", "orderType": "MARKET", "side": "BUY", "quantity": 10, "currentPrice": 1,
	}, &order))
	assert.Equal(t, 80000.0, types.Value(order.AveragePrice))
}
