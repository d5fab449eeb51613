package scenario

import (
	"os"
	"path/filepath"
	"time"

	"main/internal/assertion"
	"main/internal/chaos"
	"main/internal/recorder"
	"main/internal/schema"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

// Status is the single source of truth for a run's outcome.
const (
	// StatusPassed means every step succeeded and every assertion held.
	StatusPassed = "passed"
	// StatusFailed means an assertion or wait timed out; the engine
	// itself behaved.
	StatusFailed = "failed"
	// StatusError means a step hit an unexpected error (panic,
	// transport failure).
	StatusError = "error"
)

// EventStatistics summarizes the recorded timeline.
type EventStatistics struct {
	TotalEvents  int            `json:"total_events"`
	UniqueTopics int            `json:"unique_topics"`
	Counts       map[string]int `json:"event_counts"`
}

// Report is the final artifact of one scenario run. Partial progress
// is always present, even when the run aborted.
type Report struct {
	ScenarioName    string    `json:"scenario_name"`
	Status          string    `json:"status"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`

	TotalCycles     int          `json:"total_cycles"`
	TotalSteps      int          `json:"total_steps"`
	ExecutedSteps   int          `json:"executed_steps"`
	SuccessfulSteps int          `json:"successful_steps"`
	FailedSteps     int          `json:"failed_steps"`
	Steps           []StepResult `json:"steps"`

	Assertions      assertion.Report  `json:"assertions"`
	EventStatistics EventStatistics   `json:"event_statistics"`
	ChaosStatistics *chaos.Statistics `json:"chaos_statistics,omitempty"`
	GeneratorStats  schema.Value      `json:"generator_statistics"`
	FaultsInjected  int               `json:"faults_injected"`

	// Timeline is the recorded session, kept out of the JSON report;
	// callers save it separately as a recording file.
	Timeline recorder.Timeline `json:"-"`
}

func (o *Orchestrator) buildReport(start, end time.Time, totalSteps int, results []StepResult, tl recorder.Timeline) *Report {
	report := &Report{
		ScenarioName:    o.cfg.Name,
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: end.Sub(start).Seconds(),
		TotalCycles:     o.cycle,
		TotalSteps:      totalSteps,
		ExecutedSteps:   len(results),
		Steps:           results,
		FaultsInjected:  o.faults,
		GeneratorStats:  o.cfg.Generator.Statistics(),
		Timeline:        tl,
	}

	status := StatusPassed
	for _, result := range results {
		if result.Success {
			report.SuccessfulSteps++
			continue
		}
		report.FailedSteps++
		if result.Errored {
			status = StatusError
		} else if status != StatusError {
			status = StatusFailed
		}
	}
	report.Status = status

	for _, result := range results {
		if result.Assertions == nil {
			continue
		}
		report.Assertions.Total += result.Assertions.Total
		report.Assertions.Passed += result.Assertions.Passed
		report.Assertions.Failed += result.Assertions.Failed
		report.Assertions.Results = append(report.Assertions.Results, result.Assertions.Results...)
	}
	if report.Assertions.Total > 0 {
		report.Assertions.PassRate = float64(report.Assertions.Passed) / float64(report.Assertions.Total)
	}

	counts := tl.Counts()
	report.EventStatistics = EventStatistics{
		TotalEvents:  len(tl.Events),
		UniqueTopics: len(counts),
		Counts:       counts,
	}

	if o.cfg.Chaos != nil {
		stats := o.cfg.Chaos.Statistics()
		report.ChaosStatistics = &stats
	}
	return report
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	data, err := sonic.ConfigFastest.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal scenario report")
	}
	return data, nil
}

// WriteFile writes the JSON report, creating parent directories.
func (r *Report) WriteFile(path string) error {
	data, err := r.JSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create report directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write report %s", path)
	}
	return nil
}
