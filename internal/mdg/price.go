package mdg

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"main/internal/schema"

	"github.com/shopspring/decimal"
)

// Profile selects the market regime a price generator simulates.
type Profile string

const (
	// ProfileBullRun drifts up roughly +0.2% per tick with light noise.
	ProfileBullRun Profile = "bull_run"
	// ProfileBearMarket decays roughly -0.7% per tick for the first 50
	// ticks, then stabilizes.
	ProfileBearMarket Profile = "bear_market"
	// ProfileFlashCrash runs flat, drops 15% at tick 20, recovers
	// linearly between ticks 30 and 50, then oscillates around the
	// initial price.
	ProfileFlashCrash Profile = "flash_crash"
	// ProfileSideways oscillates ±2% around the initial price.
	ProfileSideways Profile = "sideways"
	// ProfileHighVolatility swings ±5% per tick, scaled by the
	// volatility multiplier.
	ProfileHighVolatility Profile = "high_volatility"
	// ProfilePumpAndDump pumps ~+1.3% per tick for 20 ticks, dumps
	// ~-2.7% per tick through tick 35, then goes flat.
	ProfilePumpAndDump Profile = "pump_and_dump"
)

// PriceConfig parameterizes a PriceGenerator.
type PriceConfig struct {
	Profile      Profile
	Symbol       string
	InitialPrice float64
	// VolatilityMultiplier scales the per-tick noise. 0 means 1.
	VolatilityMultiplier float64
	// SpreadBPS is the bid-ask spread in basis points. 0 means 20.
	SpreadBPS int
	// Seed fixes the noise draws. 0 seeds from the clock.
	Seed int64
}

func (c *PriceConfig) withDefaults() {
	if c.Symbol == "" {
		c.Symbol = "BTC/USDT"
	}
	if c.InitialPrice == 0 {
		c.InitialPrice = 50000
	}
	if c.VolatilityMultiplier == 0 {
		c.VolatilityMultiplier = 1
	}
	if c.SpreadBPS == 0 {
		c.SpreadBPS = 20
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UTC().UnixNano()
	}
}

// Validate ensures the config is within supported ranges.
func (c PriceConfig) Validate() error {
	switch c.Profile {
	case ProfileBullRun, ProfileBearMarket, ProfileFlashCrash,
		ProfileSideways, ProfileHighVolatility, ProfilePumpAndDump:
	default:
		return fmt.Errorf("unknown price profile %q", c.Profile)
	}
	if c.InitialPrice < 0 {
		return fmt.Errorf("initial price must be >= 0")
	}
	if c.VolatilityMultiplier < 0 {
		return fmt.Errorf("volatility multiplier must be >= 0")
	}
	if c.SpreadBPS < 0 {
		return fmt.Errorf("spread must be >= 0 basis points")
	}
	return nil
}

// PriceGenerator simulates one market regime as a price stream. Each
// Next advances the regime by one tick and returns the mid price plus
// bid/ask derived from the configured spread.
type PriceGenerator struct {
	cfg     PriceConfig
	rng     *rand.Rand
	tick    int
	current float64
	history []float64
}

// NewPriceGenerator creates a generator with validation.
func NewPriceGenerator(cfg PriceConfig) (*PriceGenerator, error) {
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &PriceGenerator{cfg: cfg}
	g.Reset()
	return g, nil
}

// Reset rewinds the regime to its initial state. The noise sequence
// restarts from the configured seed, so a reset generator reproduces
// the same stream.
func (g *PriceGenerator) Reset() {
	g.rng = rand.New(rand.NewSource(g.cfg.Seed))
	g.tick = 0
	g.current = g.cfg.InitialPrice
	g.history = []float64{g.cfg.InitialPrice}
}

// Next advances the regime one tick.
func (g *PriceGenerator) Next() Generated {
	g.tick++
	g.current = g.nextPrice()
	g.history = append(g.history, g.current)

	price := decimal.NewFromFloat(g.current).Round(2)
	halfSpread := price.
		Mul(decimal.NewFromInt(int64(g.cfg.SpreadBPS))).
		Div(decimal.NewFromInt(20000)).
		Round(2)

	return Generated{
		PrimaryValue: price,
		Payload: schema.MapOf(map[string]schema.Value{
			"symbol":     schema.String(g.cfg.Symbol),
			"price":      schema.Number(price.InexactFloat64()),
			"buy_price":  schema.Number(price.Add(halfSpread).InexactFloat64()),
			"sell_price": schema.Number(price.Sub(halfSpread).InexactFloat64()),
			"sequence":   schema.Integer(g.tick),
		}),
	}
}

func (g *PriceGenerator) nextPrice() float64 {
	switch g.cfg.Profile {
	case ProfileBullRun:
		return g.current * 1.002 * g.noise(0.002)

	case ProfileBearMarket:
		if g.tick <= 50 {
			return g.current * 0.993 * g.noise(0.005)
		}
		return g.current * g.noise(0.001)

	case ProfileFlashCrash:
		initial := g.cfg.InitialPrice
		switch {
		case g.tick >= 20 && g.tick < 30:
			return initial * 0.85 * g.noise(0.01)
		case g.tick >= 30 && g.tick < 50:
			progress := float64(g.tick-30) / 20
			target := initial*0.85 + initial*0.15*progress
			return target * g.noise(0.005)
		default:
			return initial * g.noise(0.002)
		}

	case ProfileSideways:
		oscillation := 1 + 0.02*math.Sin(float64(g.tick)/10)
		return g.cfg.InitialPrice * oscillation * g.noise(0.001)

	case ProfileHighVolatility:
		return g.current * g.noise(0.05*g.cfg.VolatilityMultiplier)

	case ProfilePumpAndDump:
		switch {
		case g.tick <= 20:
			return g.current * 1.013
		case g.tick <= 35:
			return g.current * 0.973
		default:
			return g.current * g.noise(0.001)
		}

	default:
		return g.current * g.noise(0.002)
	}
}

// noise draws a uniform multiplier in [1-width, 1+width].
func (g *PriceGenerator) noise(width float64) float64 {
	return 1 + (g.rng.Float64()*2-1)*width
}

// Statistics summarizes the price stream so far.
func (g *PriceGenerator) Statistics() schema.Value {
	stats := priceStatistics(g.history)
	return schema.MapOf(map[string]schema.Value{
		"profile":          schema.String(string(g.cfg.Profile)),
		"symbol":           schema.String(g.cfg.Symbol),
		"ticks":            schema.Integer(g.tick),
		"initial_price":    schema.Number(g.cfg.InitialPrice),
		"final_price":      schema.Number(stats.Final),
		"min_price":        schema.Number(stats.Min),
		"max_price":        schema.Number(stats.Max),
		"total_return_pct": schema.Number(stats.TotalReturnPct),
		"volatility":       schema.Number(stats.Volatility),
	})
}
