package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/google/uuid"
	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/pkg/sys"

	"main/internal/bus"
	"main/internal/recorder"
	"main/internal/report"
	"main/internal/scenario"
	"main/pkg/conn"
)

func main() {
	scenarioPath := flag.String("scenario", "", "Path to scenario YAML document")
	reportPath := flag.String("report", "", "Write JSON report to this path")
	recordingPath := flag.String("recording", "", "Save the recorded timeline to this path")
	verbose := flag.Bool("verbose", false, "Print every delivered event")
	queueSize := flag.Int("queue-size", 1024, "Delivery queue capacity")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=off)")
	pgDSN := flag.String("pg-dsn", "", "Postgres DSN for report archiving (empty=off)")
	flag.Parse()

	if *scenarioPath == "" {
		log.Fatalf("-scenario is required")
	}
	if *queueSize <= 0 {
		log.Fatalf("queue-size must be > 0")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-sys.Shutdown():
			cancel()
		case <-ctx.Done():
		}
	}()

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "scenario-runner",
			ServerAddress:   *pyroscopeAddr,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	doc, err := scenario.LoadDocument(*scenarioPath)
	if err != nil {
		log.Fatalf("scenario load failed: %v", err)
	}

	queue := bus.NewQueue(*queueSize)
	var delivered int
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		queue.Run(context.Background(), func(e bus.Event) {
			delivered++
			if *verbose {
				fmt.Printf("topic=%s source=%s\n", e.Topic, e.Source)
			}
		})
	}()

	cfg, steps, err := doc.Build(queue)
	if err != nil {
		log.Fatalf("scenario build failed: %v", err)
	}
	orch, err := scenario.NewOrchestrator(cfg)
	if err != nil {
		log.Fatalf("orchestrator init failed: %v", err)
	}

	result, err := orch.Run(ctx, steps)
	queue.Close()
	wg.Wait()
	if err != nil {
		log.Fatalf("scenario run failed: %v", err)
	}

	printSummary(result, delivered)

	if *reportPath != "" {
		if err := result.WriteFile(*reportPath); err != nil {
			log.Fatalf("report write failed: %v", err)
		}
		fmt.Printf("report written to %s\n", *reportPath)
	}
	if *recordingPath != "" {
		if err := recorder.Save(result.Timeline, *recordingPath); err != nil {
			log.Fatalf("recording save failed: %v", err)
		}
		fmt.Printf("recording saved to %s\n", *recordingPath)
	}
	if *pgDSN != "" {
		if err := archive(*pgDSN, result); err != nil {
			log.Fatalf("report archive failed: %v", err)
		}
	}

	if result.Status != scenario.StatusPassed {
		os.Exit(1)
	}
}

func printSummary(r *scenario.Report, delivered int) {
	fmt.Printf("scenario %q: %s\n", r.ScenarioName, r.Status)
	fmt.Printf("  cycles=%d steps=%d/%d duration=%.2fs\n", r.TotalCycles, r.SuccessfulSteps, r.TotalSteps, r.DurationSeconds)
	fmt.Printf("  events recorded=%d delivered=%d faults=%d\n", r.EventStatistics.TotalEvents, delivered, r.FaultsInjected)
	if r.Assertions.Total > 0 {
		fmt.Printf("  assertions %d/%d passed\n", r.Assertions.Passed, r.Assertions.Total)
		for _, res := range r.Assertions.Results {
			if !res.Passed {
				fmt.Printf("    FAIL %s: %s\n", res.Name, res.Message)
			}
		}
	}
}

func archive(dsn string, r *scenario.Report) error {
	client, err := conn.Open(conn.Config{DSN: dsn})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	arch, err := report.NewArchive(client)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	if err := arch.Save(runID, r); err != nil {
		return err
	}
	fmt.Printf("report archived as %s\n", runID)
	return nil
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
