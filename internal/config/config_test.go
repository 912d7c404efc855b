package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 0.0015, cfg.Trading.CommissionRate)
	assert.Equal(t, 0.001, cfg.Trading.TaxRate)
	assert.Equal(t, "HOSE", cfg.Trading.Exchange)
	assert.False(t, cfg.Trading.CreditRealizedPL)
	assert.Equal(t, 3, cfg.Trading.FillRetries)
	assert.Equal(t, PricingModeClient, cfg.Pricing.Mode)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	require.Len(t, cfg.Auth.Credentials, 2)
	assert.Equal(t, []string{"trade", "admin"}, cfg.Auth.Credentials[1].Roles)
	assert.Empty(t, cfg.Events.Brokers)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "9090"
trading:
  credit_realized_pl: true
  fill_retries: 5
pricing:
  mode: server
  quotes:
    VIC: 46000
events:
  relay_interval: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("TRADING_TRADING_EXCHANGE", "HNX")
	t.Setenv("TRADING_EVENTS_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Trading.CreditRealizedPL)
	assert.Equal(t, 5, cfg.Trading.FillRetries)
	assert.Equal(t, "HNX", cfg.Trading.Exchange)
	assert.Equal(t, PricingModeServer, cfg.Pricing.Mode)
	assert.Equal(t, 2*time.Second, cfg.Events.RelayInterval)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.Brokers)

	// viper lowercases map keys read from files
	assert.Equal(t, 46000.0, cfg.Pricing.Quotes["vic"])
}

func TestLegacyEnv(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("DEBUG", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidateRejectsBadPricingMode(t *testing.T) {
	t.Setenv("TRADING_PRICING_MODE", "oracle")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pricing.mode")
}
