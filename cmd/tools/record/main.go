package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"main/internal/mdg"
	"main/internal/recorder"
)

// Generates a synthetic market data recording that the replay tool and
// scenario documents can consume without a live feed.
func main() {
	out := flag.String("out", "testdata/recording.json", "Output recording path")
	profile := flag.String("profile", "sideways", "Price profile: bull_run|bear_market|flash_crash|sideways|high_volatility|pump_and_dump")
	symbol := flag.String("symbol", "", "Trading pair symbol")
	ticks := flag.Int("ticks", 100, "Number of ticks to generate")
	initialPrice := flag.Float64("initial-price", 0, "Starting price (0=default)")
	volatility := flag.Float64("volatility", 0, "Volatility multiplier (0=default)")
	spreadBPS := flag.Int("spread-bps", 0, "Bid/ask spread in basis points (0=default)")
	seed := flag.Int64("seed", 0, "Random seed (0=clock)")
	intervalMS := flag.Int64("interval-ms", 100, "Recorded gap between ticks")
	topic := flag.String("topic", "PriceTick", "Topic for generated events")
	session := flag.String("session", "synthetic", "Session name")
	flag.Parse()

	if *ticks <= 0 {
		log.Fatalf("ticks must be > 0")
	}
	if *intervalMS < 0 {
		log.Fatalf("interval-ms must be >= 0")
	}

	generator, err := mdg.NewPriceGenerator(mdg.PriceConfig{
		Profile:              mdg.Profile(*profile),
		Symbol:               *symbol,
		InitialPrice:         *initialPrice,
		VolatilityMultiplier: *volatility,
		SpreadBPS:            *spreadBPS,
		Seed:                 *seed,
	})
	if err != nil {
		log.Fatalf("generator init failed: %v", err)
	}

	// A stepped clock gives the recording deterministic offsets
	// instead of the wall-clock time generation happens to take.
	base := time.Now()
	var tick int
	rec := recorder.NewRecorder().WithNow(func() time.Time {
		return base.Add(time.Duration(tick) * time.Duration(*intervalMS) * time.Millisecond)
	})
	if err := rec.Start(*session); err != nil {
		log.Fatalf("recorder start failed: %v", err)
	}

	for tick = 0; tick < *ticks; tick++ {
		rec.SetCycle(tick)
		point := generator.Next()
		if err := rec.Record(*topic, point.Payload, "Generator"); err != nil {
			log.Fatalf("record tick %d failed: %v", tick, err)
		}
	}

	tl := rec.Stop()
	if err := recorder.Save(tl, *out); err != nil {
		log.Fatalf("recording save failed: %v", err)
	}
	fmt.Printf("recorded %d events over %dms to %s\n", len(tl.Events), tl.DurationMS(), *out)
	fmt.Printf("generator stats: %s\n", generator.Statistics().String())
}
