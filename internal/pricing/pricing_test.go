package pricing

import (
	"context"
	"testing"

	"github.com/ksred/klear-trading/internal/config"
	"github.com/ksred/klear-trading/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientOracle(t *testing.T) {
	ctx := context.Background()
	oracle := NewOracle(config.PricingConfig{Mode: config.PricingModeClient})

	price, err := oracle.Price(ctx, "VIC", 45000)
	require.NoError(t, err)
	assert.Equal(t, 45000.0, price)

	for _, submitted := range []float64{0, -1} {
		_, err := oracle.Price(ctx, "VIC", submitted)
		require.Error(t, err)
		assert.Equal(t, types.KindBadRequest, types.KindOf(err))
	}
}

func TestStaticOracleIgnoresClientPrice(t *testing.T) {
	ctx := context.Background()
	oracle := NewOracle(config.PricingConfig{
		Mode:         config.PricingModeServer,
		DefaultPrice: 50000,
		Quotes:       map[string]float64{"vic": 45000},
	})

	price, err := oracle.Price(ctx, "VIC", 1)
	require.NoError(t, err)
	assert.Equal(t, 45000.0, price)

	price, err = oracle.Price(ctx, "unknown", 0)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, price)
}

func TestStaticOracleWithoutDefault(t *testing.T) {
	oracle := NewStaticOracle(nil, 0)
	_, err := oracle.Price(context.Background(), "FPT", 80000)
	require.Error(t, err)
	assert.Equal(t, types.KindBadRequest, types.KindOf(err))
}
