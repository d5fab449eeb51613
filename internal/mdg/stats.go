package mdg

import "math"

// streamStatistics summarizes one generated price stream.
type streamStatistics struct {
	Final          float64
	Min            float64
	Max            float64
	TotalReturnPct float64
	// Volatility is the standard deviation of per-tick returns.
	Volatility float64
}

func priceStatistics(history []float64) streamStatistics {
	if len(history) == 0 {
		return streamStatistics{}
	}

	stats := streamStatistics{
		Final: history[len(history)-1],
		Min:   history[0],
		Max:   history[0],
	}
	for _, price := range history {
		stats.Min = math.Min(stats.Min, price)
		stats.Max = math.Max(stats.Max, price)
	}
	if history[0] != 0 {
		stats.TotalReturnPct = (stats.Final - history[0]) / history[0] * 100
	}

	if len(history) < 3 {
		return stats
	}
	returns := make([]float64, 0, len(history)-1)
	var mean float64
	for i := 1; i < len(history); i++ {
		if history[i-1] == 0 {
			continue
		}
		r := history[i]/history[i-1] - 1
		returns = append(returns, r)
		mean += r
	}
	if len(returns) < 2 {
		return stats
	}
	mean /= float64(len(returns))
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stats.Volatility = math.Sqrt(variance / float64(len(returns)-1))
	return stats
}
