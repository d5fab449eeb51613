package assertion

import (
	"strings"

	"main/internal/recorder"
)

// Report aggregates the results of one check run.
type Report struct {
	Total    int      `json:"total"`
	Passed   int      `json:"passed"`
	Failed   int      `json:"failed"`
	PassRate float64  `json:"pass_rate"`
	Results  []Result `json:"results"`
}

// AllPassed reports whether every assertion held.
func (r Report) AllPassed() bool { return r.Failed == 0 }

// FailureSummary lists the failing assertions, one per line. Empty
// when everything passed.
func (r Report) FailureSummary() string {
	var lines []string
	for _, result := range r.Results {
		if !result.Passed {
			lines = append(lines, result.Name+": "+result.Message)
		}
	}
	return strings.Join(lines, "\n")
}

// Engine evaluates assertions against timeline snapshots. Stateless:
// the same snapshot always yields the same report.
type Engine struct{}

// NewEngine creates an assertion engine.
func NewEngine() *Engine { return &Engine{} }

// Check evaluates every assertion against the snapshot and aggregates
// the results. Assertions are independent; order only affects the
// report's result ordering.
func (e *Engine) Check(assertions []Assertion, tl recorder.Timeline) Report {
	report := Report{
		Total:   len(assertions),
		Results: make([]Result, 0, len(assertions)),
	}
	for _, a := range assertions {
		result := a.Check(tl)
		report.Results = append(report.Results, result)
		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	if report.Total > 0 {
		report.PassRate = float64(report.Passed) / float64(report.Total)
	}
	return report
}
