package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ksred/klear-trading/internal/api"
	"github.com/ksred/klear-trading/internal/config"
	"github.com/ksred/klear-trading/internal/database"
	"github.com/ksred/klear-trading/internal/types"
	"github.com/ksred/klear-trading/pkg/money"
)

var orderTypes = []types.OrderType{
	types.OrderTypeMarket,
	types.OrderTypeMarket,
	types.OrderTypeLimit,
	types.OrderTypeStop,
	types.OrderTypeStopLimit,
}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	mu         sync.Mutex
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

func (rs *routeStats) record(d time.Duration, failed bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
	if failed {
		rs.failures++
	}
}

// calculate returns min, max, mean, median, p95 and p99 latencies
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95 = rs.durations[int(math.Ceil(float64(len(rs.durations))*0.95))-1]
	p99 = rs.durations[int(math.Ceil(float64(len(rs.durations))*0.99))-1]
	return
}

// apiError is a non-2xx envelope returned by the API
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.message)
}

// simulationClient handles HTTP communication with the trading API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

func newSimulationClient(baseURL, apiKey, apiSecret string) (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		stats: map[string]*routeStats{
			"auth":      {name: "Authentication"},
			"account":   {name: "Open Account"},
			"create":    {name: "Create Order"},
			"get":       {name: "Get Order"},
			"cancel":    {name: "Cancel Order"},
			"query":     {name: "Account Queries"},
			"positions": {name: "Positions"},
		},
	}

	var token struct {
		Token string `json:"token"`
	}
	if err := sc.call("auth", http.MethodPost, "/api/v1/auth/token", map[string]string{
		"apiKey":    apiKey,
		"apiSecret": apiSecret,
	}, nil, &token); err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token.Token

	return sc, nil
}

// call sends body as JSON and decodes the envelope data into out
func (sc *simulationClient) call(route, method, path string, body any, headers map[string]string, out any) (err error) {
	start := time.Now()
	defer func() {
		sc.stats[route].record(time.Since(start), err != nil)
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+sc.authToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if !envelope.Success {
		return &apiError{status: resp.StatusCode, message: envelope.Message}
	}
	if out != nil && len(envelope.Data) > 0 {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}

func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	names := make([]string, 0, len(sc.stats))
	for key := range sc.stats {
		names = append(names, key)
	}
	sort.Strings(names)

	for _, key := range names {
		stats := sc.stats[key]
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// market is a random walk over the configured quote table
type market struct {
	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]float64
}

func newMarket(quotes map[string]float64, seed int64) *market {
	prices := make(map[string]float64, len(quotes))
	for symbol, price := range quotes {
		prices[strings.ToUpper(symbol)] = price
	}
	return &market{rng: rand.New(rand.NewSource(seed)), prices: prices}
}

func (m *market) symbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.prices))
	for symbol := range m.prices {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// tick moves symbol by up to 2% in 100 VND steps and returns the new price
func (m *market) tick(symbol string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	price := m.prices[symbol] * (1 + (m.rng.Float64()-0.5)*0.04)
	price = math.Max(100, math.Round(price/100)*100)
	m.prices[symbol] = price
	return price
}

func (m *market) intn(n int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Intn(n)
}

// randomOrder builds an order around the current price. Limits and stops
// are placed within 3% of it, so some fill and some rest.
func (m *market) randomOrder(accountID uint) map[string]any {
	symbols := m.symbols()
	symbol := symbols[m.intn(len(symbols))]
	price := m.tick(symbol)
	orderType := orderTypes[m.intn(len(orderTypes))]
	side := types.SideBuy
	if m.intn(3) == 0 {
		side = types.SideSell
	}

	offset := func() float64 {
		return math.Round(price*(1+(float64(m.intn(61))-30)/1000)/100) * 100
	}

	order := map[string]any{
		"accountId":    accountID,
		"symbol":       symbol,
		"orderType":    orderType,
		"side":         side,
		"quantity":     (m.intn(10) + 1) * 10,
		"currentPrice": price,
	}
	if orderType.RequiresPrice() {
		order["price"] = offset()
	}
	if orderType.RequiresStopPrice() {
		order["stopPrice"] = offset()
	}
	return order
}

type simulationStats struct {
	mu        sync.Mutex
	submitted int
	filled    int
	resting   int
	rejected  int
	failed    int
	cancelled int
	pending   []uint
}

func (s *simulationStats) observe(order *types.OrderResponse, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted++

	var apiErr *apiError
	switch {
	case err == nil && order.Status == types.OrderFilled:
		s.filled++
	case err == nil:
		s.resting++
		s.pending = append(s.pending, order.ID)
	case errors.As(err, &apiErr) && apiErr.status == http.StatusBadRequest:
		s.rejected++
	default:
		s.failed++
	}
}

func main() {
	var (
		baseURL    = flag.String("addr", "", "base URL of a running API; empty starts an embedded server")
		port       = flag.String("port", "18080", "port of the embedded server")
		numAccts   = flag.Int("accounts", 3, "accounts to open")
		numOrders  = flag.Int("orders", 150, "orders to submit")
		numWorkers = flag.Int("workers", 5, "concurrent order submitters")
		deposit    = flag.Float64("deposit", 500_000_000, "initial deposit per account")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	)
	flag.Parse()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if *baseURL == "" {
		*baseURL = "http://localhost:" + *port
		dir, err := os.MkdirTemp("", "klear-simulation")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create temp dir")
		}
		defer os.RemoveAll(dir)

		cfg.Database.DSN = filepath.Join(dir, "simulation.db")
		cfg.RateLimit = config.RateLimitConfig{}
		if err := startServer(cfg, *port); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}

	credential := cfg.Auth.Credentials[0]
	simClient, err := newSimulationClient(*baseURL, credential.Key, credential.Secret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	accountIDs := make([]uint, 0, *numAccts)
	for i := 0; i < *numAccts; i++ {
		var account types.TradingAccountResponse
		if err := simClient.call("account", http.MethodPost, "/api/v1/accounts", map[string]any{
			"accountName":    fmt.Sprintf("Simulation %d", i+1),
			"brokerName":     "SIM",
			"initialDeposit": *deposit,
		}, nil, &account); err != nil {
			log.Fatal().Err(err).Msg("Failed to open account")
		}
		accountIDs = append(accountIDs, account.ID)
	}

	mkt := newMarket(cfg.Pricing.Quotes, *seed)
	stats := &simulationStats{}
	started := time.Now()
	log.Info().Int("orders", *numOrders).Int("workers", *numWorkers).Int64("seed", *seed).Msg("Starting simulation")

	jobs := make(chan uint)
	var wg sync.WaitGroup
	for w := 0; w < *numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for accountID := range jobs {
				var order types.OrderResponse
				err := simClient.call("create", http.MethodPost, "/api/v1/orders", mkt.randomOrder(accountID),
					map[string]string{"Idempotency-Key": uuid.New().String()}, &order)
				if err != nil {
					log.Debug().Err(err).Int("worker", workerID).Uint("account_id", accountID).Msg("order not accepted")
				}
				stats.observe(&order, err)
			}
		}(w)
	}
	for i := 0; i < *numOrders; i++ {
		jobs <- accountIDs[i%len(accountIDs)]
	}
	close(jobs)
	wg.Wait()

	// cancel half of what is still resting
	for i, id := range stats.pending {
		var order types.OrderResponse
		if err := simClient.call("get", http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", id), nil, nil, &order); err != nil {
			continue
		}
		if i%2 == 0 && order.Status == types.OrderPending {
			if err := simClient.call("cancel", http.MethodDelete, fmt.Sprintf("/api/v1/orders/%d/cancel", id), nil, nil, nil); err == nil {
				stats.cancelled++
			}
		}
	}

	mismatches := 0
	for _, accountID := range accountIDs {
		mismatches += reconcile(simClient, mkt, accountID, *deposit, cfg.Trading.CreditRealizedPL)
	}

	fmt.Println("\nSimulation Results")
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("%-25s %d\n", "Orders submitted", stats.submitted)
	fmt.Printf("%-25s %d\n", "Filled", stats.filled)
	fmt.Printf("%-25s %d\n", "Resting", stats.resting)
	fmt.Printf("%-25s %d\n", "Cancelled after resting", stats.cancelled)
	fmt.Printf("%-25s %d\n", "Rejected (400)", stats.rejected)
	fmt.Printf("%-25s %d\n", "Failed", stats.failed)
	fmt.Printf("%-25s %s\n", "Duration", time.Since(started).Round(time.Millisecond))
	fmt.Printf("%-25s %d\n", "Ledger mismatches", mismatches)
	fmt.Println(strings.Repeat("-", 50))

	simClient.printPerformanceStats()

	if mismatches > 0 {
		os.Exit(1)
	}
}

// reconcile replays the executions of an account's filled orders and
// compares the result with the ledger and positions the API reports. With
// creditRealizedPL the realized P&L of each position is also expected in cash.
// Returns the number of mismatches found.
func reconcile(sc *simulationClient, mkt *market, accountID uint, deposit float64, creditRealizedPL bool) int {
	logger := log.With().Uint("account_id", accountID).Logger()

	var (
		account   types.TradingAccountResponse
		orders    []types.OrderResponse
		positions []types.PositionResponse
	)
	if err := sc.call("query", http.MethodGet, fmt.Sprintf("/api/v1/accounts/%d", accountID), nil, nil, &account); err != nil {
		logger.Error().Err(err).Msg("failed to load account")
		return 1
	}
	if err := sc.call("query", http.MethodGet, fmt.Sprintf("/api/v1/orders/account/%d", accountID), nil, nil, &orders); err != nil {
		logger.Error().Err(err).Msg("failed to load orders")
		return 1
	}

	cash := money.FromFloat(deposit)
	held := map[string]int64{}
	for _, o := range orders {
		for _, e := range o.Executions {
			value := money.TradeValue(e.Quantity, e.Price)
			fees := money.FromFloat(e.Commission).Add(money.FromFloat(e.Tax))
			if o.Side == types.SideBuy {
				cash = cash.Sub(value).Sub(fees)
				held[o.Symbol] += e.Quantity
			} else {
				cash = cash.Add(value).Sub(fees)
				held[o.Symbol] -= e.Quantity
			}
		}
	}

	mismatches := 0
	prices := map[string]float64{}
	for _, symbol := range mkt.symbols() {
		prices[symbol] = mkt.tick(symbol)
	}
	if err := sc.call("positions", http.MethodPost, fmt.Sprintf("/api/v1/positions/account/%d/mark", accountID),
		map[string]any{"prices": prices}, nil, &positions); err != nil {
		logger.Error().Err(err).Msg("failed to mark positions")
		return mismatches + 1
	}

	unrealized := 0.0
	for _, p := range positions {
		if held[p.Symbol] != p.Quantity {
			logger.Error().Str("symbol", p.Symbol).Int64("expected", held[p.Symbol]).Int64("quantity", p.Quantity).Msg("position does not match executions")
			mismatches++
		}
		unrealized = money.Add(unrealized, p.UnrealizedPL)
		if creditRealizedPL {
			cash = cash.Add(money.FromFloat(p.RealizedPL))
		}
	}

	if !cash.Round(2).Equal(decimal.NewFromFloat(account.Balance).Round(2)) {
		logger.Error().Str("expected", cash.StringFixed(2)).Float64("balance", account.Balance).Msg("ledger does not match executions")
		mismatches++
	}
	if account.AvailableCash < 0 {
		logger.Error().Float64("available_cash", account.AvailableCash).Msg("available cash went negative")
		mismatches++
	}

	logger.Info().
		Float64("balance", account.Balance).
		Int("orders", len(orders)).
		Int("positions", len(positions)).
		Float64("unrealized_pl", unrealized).
		Int("mismatches", mismatches).
		Msg("account reconciled")
	return mismatches
}

// startServer runs an embedded API on port and waits until it answers
func startServer(cfg *config.Config, port string) error {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	server := api.New(cfg, db)
	go func() {
		if err := http.ListenAndServe(":"+port, server.Router); err != nil {
			log.Fatal().Err(err).Msg("embedded server stopped")
		}
	}()

	client := &http.Client{Timeout: time.Second}
	for i := 0; i < 50; i++ {
		resp, err := client.Get("http://localhost:" + port + "/api/v1/orders/1")
		if err == nil {
			resp.Body.Close()
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return errors.New("embedded server did not come up")
}
