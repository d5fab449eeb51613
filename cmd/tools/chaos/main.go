package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"main/internal/bus"
	"main/internal/chaos"
	"main/internal/recorder"
	"main/internal/scenario"
	"main/internal/schema"
)

// Degrades a recording offline: replays it through the chaos rule
// engine and saves what survives. Useful for producing broken-feed
// fixtures without re-running a scenario.
func main() {
	input := flag.String("file", "", "Recording to degrade")
	output := flag.String("out", "testdata/recording_chaos.json", "Degraded recording path")
	rulesPath := flag.String("rules", "", "YAML file with chaos rules")
	seed := flag.Int64("seed", 0, "RNG seed (0=now)")
	session := flag.String("session", "", "Output session name (default: <input session>_chaos)")
	flag.Parse()

	if *input == "" {
		log.Fatalf("-file is required")
	}
	if *rulesPath == "" {
		log.Fatalf("-rules is required")
	}

	tl, err := recorder.Load(*input)
	if err != nil {
		log.Fatalf("recording load failed: %v", err)
	}
	rules, err := loadRules(*rulesPath)
	if err != nil {
		log.Fatalf("rules load failed: %v", err)
	}

	name := *session
	if name == "" {
		name = tl.SessionName + "_chaos"
	}

	// Replay the input offsets through a stepped clock so the output
	// keeps the original timing; chaos delays extend it instead of
	// stalling the tool.
	base := time.Now()
	var offset time.Duration
	outRec := recorder.NewRecorder().WithNow(func() time.Time {
		return base.Add(offset)
	})
	if err := outRec.Start(name); err != nil {
		log.Fatalf("recorder start failed: %v", err)
	}
	sink := bus.PublisherFunc(func(topic string, payload schema.Value, source string) error {
		return outRec.Record(topic, payload, source)
	})

	engine, err := chaos.NewEngine(chaos.Config{Seed: *seed, Rules: rules})
	if err != nil {
		log.Fatalf("chaos config invalid: %v", err)
	}
	engine.WithSleep(func(d time.Duration) {
		offset += d
	})
	wrapped, err := engine.Wrap(sink, nil)
	if err != nil {
		log.Fatalf("chaos wrap failed: %v", err)
	}

	var faults int
	for _, event := range tl.Events {
		offset = time.Duration(event.OffsetMS) * time.Millisecond
		engine.SetCycle(event.Cycle)
		outRec.SetCycle(event.Cycle)
		if err := wrapped.Publish(event.Topic, event.Payload, event.Source); err != nil {
			if !errors.Is(err, chaos.ErrFaultInjected) {
				log.Fatalf("publish %s failed: %v", event.Topic, err)
			}
			faults++
		}
	}

	degraded := outRec.Stop()
	if err := recorder.Save(degraded, *output); err != nil {
		log.Fatalf("recording save failed: %v", err)
	}

	stats := engine.Statistics()
	fmt.Printf("degraded %d -> %d events, faults=%d, written to %s\n", len(tl.Events), len(degraded.Events), faults, *output)
	for kind, count := range stats.Applied {
		fmt.Printf("  %s applied %d times\n", kind, count)
	}
}

// ruleFile is the on-disk layout of a standalone rules document.
type ruleFile struct {
	Rules []scenario.ChaosDoc `yaml:"rules"`
}

func loadRules(path string) ([]chaos.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var file ruleFile
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s defines no rules", path)
	}
	return scenario.BuildChaosRules(file.Rules)
}
