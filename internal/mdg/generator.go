package mdg

import (
	"main/internal/schema"

	"github.com/shopspring/decimal"
)

// Generated is one synthetic data point. PrimaryValue is the headline
// number used in log output; Payload carries the full event body.
type Generated struct {
	PrimaryValue decimal.Decimal
	Payload      schema.Value
}

// Generator produces a deterministic stream of synthetic data points.
// Implementations are not safe for concurrent use; the orchestrator
// drives one generator from one goroutine.
type Generator interface {
	Next() Generated
	Reset()
	Statistics() schema.Value
}
