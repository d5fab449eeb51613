package mdg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustGenerator(t *testing.T, cfg PriceConfig) *PriceGenerator {
	t.Helper()
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	g, err := NewPriceGenerator(cfg)
	require.NoError(t, err)
	return g
}

func finalPrice(g *PriceGenerator, ticks int) float64 {
	var last Generated
	for i := 0; i < ticks; i++ {
		last = g.Next()
	}
	return last.PrimaryValue.InexactFloat64()
}

func TestBullRunTrendsUp(t *testing.T) {
	g := mustGenerator(t, PriceConfig{Profile: ProfileBullRun, InitialPrice: 50000})
	final := finalPrice(g, 100)
	// +0.2% per tick compounds to roughly +22% over 100 ticks.
	assert.Greater(t, final, 55000.0)
}

func TestBearMarketDecaysThenStabilizes(t *testing.T) {
	g := mustGenerator(t, PriceConfig{Profile: ProfileBearMarket, InitialPrice: 50000})
	afterCrash := finalPrice(g, 50)
	assert.Less(t, afterCrash, 40000.0)

	stabilized := finalPrice(g, 30)
	assert.InDelta(t, afterCrash, stabilized, afterCrash*0.05)
}

func TestFlashCrashPhases(t *testing.T) {
	g := mustGenerator(t, PriceConfig{Profile: ProfileFlashCrash, InitialPrice: 50000})

	preCrash := finalPrice(g, 19)
	assert.InDelta(t, 50000, preCrash, 50000*0.01)

	duringCrash := finalPrice(g, 6) // ticks 20-25
	assert.InDelta(t, 42500, duringCrash, 42500*0.02)

	recovered := finalPrice(g, 30) // past tick 50
	assert.InDelta(t, 50000, recovered, 50000*0.01)
}

func TestSidewaysStaysNearInitial(t *testing.T) {
	g := mustGenerator(t, PriceConfig{Profile: ProfileSideways, InitialPrice: 50000})
	for i := 0; i < 100; i++ {
		price := g.Next().PrimaryValue.InexactFloat64()
		assert.InDelta(t, 50000, price, 50000*0.025)
	}
}

func TestHighVolatilityMultiplierWidensSwings(t *testing.T) {
	calm := mustGenerator(t, PriceConfig{Profile: ProfileHighVolatility, InitialPrice: 50000, VolatilityMultiplier: 0.2})
	wild := mustGenerator(t, PriceConfig{Profile: ProfileHighVolatility, InitialPrice: 50000, VolatilityMultiplier: 2})

	for i := 0; i < 200; i++ {
		calm.Next()
		wild.Next()
	}

	calmStats, err := calm.Statistics().Resolve("volatility")
	require.NoError(t, err)
	wildStats, err := wild.Statistics().Resolve("volatility")
	require.NoError(t, err)
	assert.Greater(t, wildStats.Num, calmStats.Num)
}

func TestResetReproducesStream(t *testing.T) {
	g := mustGenerator(t, PriceConfig{Profile: ProfileHighVolatility, InitialPrice: 50000})

	first := make([]float64, 0, 20)
	for i := 0; i < 20; i++ {
		first = append(first, g.Next().PrimaryValue.InexactFloat64())
	}

	g.Reset()
	for i := 0; i < 20; i++ {
		assert.Equal(t, first[i], g.Next().PrimaryValue.InexactFloat64(), "tick %d", i)
	}
}

func TestPayloadShape(t *testing.T) {
	g := mustGenerator(t, PriceConfig{Profile: ProfileBullRun, Symbol: "ETH/USDT", InitialPrice: 3000, SpreadBPS: 20})
	tick := g.Next()

	symbol, err := tick.Payload.Resolve("symbol")
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT", symbol.Str)

	price, err := tick.Payload.Resolve("price")
	require.NoError(t, err)
	buy, err := tick.Payload.Resolve("buy_price")
	require.NoError(t, err)
	sell, err := tick.Payload.Resolve("sell_price")
	require.NoError(t, err)

	assert.Greater(t, buy.Num, price.Num)
	assert.Less(t, sell.Num, price.Num)
	// 20 bps total spread puts each side ~0.1% from mid.
	assert.InDelta(t, price.Num*0.001, buy.Num-price.Num, 0.02)

	seq, err := tick.Payload.Resolve("sequence")
	require.NoError(t, err)
	assert.Equal(t, float64(1), seq.Num)
}

func TestStatisticsSummary(t *testing.T) {
	g := mustGenerator(t, PriceConfig{Profile: ProfileBullRun, InitialPrice: 50000})
	for i := 0; i < 50; i++ {
		g.Next()
	}

	stats := g.Statistics()
	ticks, err := stats.Resolve("ticks")
	require.NoError(t, err)
	assert.Equal(t, float64(50), ticks.Num)

	ret, err := stats.Resolve("total_return_pct")
	require.NoError(t, err)
	assert.Greater(t, ret.Num, 0.0)

	minPrice, err := stats.Resolve("min_price")
	require.NoError(t, err)
	maxPrice, err := stats.Resolve("max_price")
	require.NoError(t, err)
	assert.LessOrEqual(t, minPrice.Num, maxPrice.Num)
}

func TestConfigValidation(t *testing.T) {
	_, err := NewPriceGenerator(PriceConfig{Profile: "lunar_cycle"})
	assert.Error(t, err)

	_, err = NewPriceGenerator(PriceConfig{Profile: ProfileBullRun, InitialPrice: -1})
	assert.Error(t, err)

	_, err = NewPriceGenerator(PriceConfig{Profile: ProfileBullRun, SpreadBPS: -5})
	assert.Error(t, err)
}
