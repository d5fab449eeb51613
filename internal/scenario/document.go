package scenario

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"main/internal/assertion"
	"main/internal/bus"
	"main/internal/chaos"
	"main/internal/mdg"
	"main/internal/schema"

	"github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"
)

// Document is the structured form of a scenario definition file.
// Unknown fields are rejected at load time so typos fail before any
// step executes.
type Document struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`

	Setup SetupDoc   `yaml:"setup"`
	Chaos []ChaosDoc `yaml:"chaos"`
	Steps []StepDoc  `yaml:"steps"`
}

// SetupDoc configures the generator and bus wiring of a run.
type SetupDoc struct {
	Topic           string       `yaml:"topic"`
	Source          string       `yaml:"source"`
	SessionName     string       `yaml:"session_name"`
	CycleIntervalMS int          `yaml:"cycle_interval_ms"`
	Generator       GeneratorDoc `yaml:"generator"`
	InitialEvents   []EventDoc   `yaml:"initial_events"`
}

// GeneratorDoc configures the scenario-profile price generator.
type GeneratorDoc struct {
	Profile              string  `yaml:"profile"`
	Symbol               string  `yaml:"symbol"`
	InitialPrice         float64 `yaml:"initial_price"`
	VolatilityMultiplier float64 `yaml:"volatility_multiplier"`
	SpreadBPS            int     `yaml:"spread_bps"`
	Seed                 int64   `yaml:"seed"`
}

// EventDoc is one seed event published before the first step.
type EventDoc struct {
	Topic   string `yaml:"topic"`
	Payload any    `yaml:"payload"`
	Source  string `yaml:"source"`
}

// ChaosDoc is the document form of one chaos rule.
type ChaosDoc struct {
	Type        string  `yaml:"type"`
	Topic       string  `yaml:"topic"`
	AtCycle     *int    `yaml:"at_cycle"`
	AfterTopic  string  `yaml:"after_topic"`
	Probability float64 `yaml:"probability"`

	DelayMS int `yaml:"delay_ms"`

	FieldPath string `yaml:"field_path"`
	NewValue  any    `yaml:"new_value"`

	FailureTopic   string `yaml:"failure_topic"`
	FailurePayload any    `yaml:"failure_payload"`
	FailureMessage string `yaml:"failure_message"`

	MinLatencyMS int `yaml:"min_latency_ms"`
	MaxLatencyMS int `yaml:"max_latency_ms"`
}

// CycleWindowDoc is an inclusive cycle range.
type CycleWindowDoc struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// AssertionDoc is the document form of one assertion. Custom
// assertions carry code and are only constructible programmatically.
type AssertionDoc struct {
	Type  string `yaml:"type"`
	Topic string `yaml:"topic"`

	Min   *int `yaml:"min"`
	Max   *int `yaml:"max"`
	Exact *int `yaml:"exact"`

	Topics    []string `yaml:"topics"`
	AllowGaps bool     `yaml:"allow_gaps"`

	Window *CycleWindowDoc `yaml:"cycle_window"`

	FieldPath string `yaml:"field_path"`
	Operator  string `yaml:"operator"`
	Value     any    `yaml:"value"`
}

// StepDoc is the document form of one step. execute_action carries
// code and is only constructible programmatically.
type StepDoc struct {
	Type        string         `yaml:"type"`
	Name        string         `yaml:"name"`
	Cycles      int            `yaml:"cycles"`
	Topic       string         `yaml:"topic"`
	Count       int            `yaml:"count"`
	NonBlocking bool           `yaml:"non_blocking"`
	Assertions  []AssertionDoc `yaml:"assertions"`
}

// LoadDocument reads and parses a scenario definition file.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read scenario document %s", path)
	}
	return ParseDocument(data)
}

// ParseDocument parses a scenario definition, rejecting unknown fields.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "parse scenario document")
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("scenario document needs a name")
	}
	return &doc, nil
}

// Build materializes the document into a run: generator, chaos engine,
// orchestrator config and steps. target is the downstream bus events
// are delivered to. Definition errors surface here, before anything
// runs.
func (d *Document) Build(target bus.Publisher) (Config, []Step, error) {
	generator, err := mdg.NewPriceGenerator(mdg.PriceConfig{
		Profile:              mdg.Profile(d.Setup.Generator.Profile),
		Symbol:               d.Setup.Generator.Symbol,
		InitialPrice:         d.Setup.Generator.InitialPrice,
		VolatilityMultiplier: d.Setup.Generator.VolatilityMultiplier,
		SpreadBPS:            d.Setup.Generator.SpreadBPS,
		Seed:                 d.Setup.Generator.Seed,
	})
	if err != nil {
		return Config{}, nil, errors.Wrapf(err, "scenario %q generator", d.Name)
	}

	cfg := Config{
		Name:          d.Name,
		Generator:     generator,
		Bus:           target,
		Topic:         d.Setup.Topic,
		Source:        d.Setup.Source,
		SessionName:   d.Setup.SessionName,
		CycleInterval: time.Duration(d.Setup.CycleIntervalMS) * time.Millisecond,
	}

	for i, event := range d.Setup.InitialEvents {
		if event.Topic == "" {
			return Config{}, nil, fmt.Errorf("scenario %q initial event %d has no topic", d.Name, i+1)
		}
		payload, err := schema.FromAny(event.Payload)
		if err != nil {
			return Config{}, nil, errors.Wrapf(err, "scenario %q initial event %s", d.Name, event.Topic)
		}
		source := event.Source
		if source == "" {
			source = "Setup"
		}
		cfg.InitialEvents = append(cfg.InitialEvents, bus.Event{
			Topic:   event.Topic,
			Payload: payload,
			Source:  source,
		})
	}

	if len(d.Chaos) > 0 {
		rules, err := d.chaosRules()
		if err != nil {
			return Config{}, nil, err
		}
		engine, err := chaos.NewEngine(chaos.Config{
			Seed:  d.Setup.Generator.Seed,
			Rules: rules,
		})
		if err != nil {
			return Config{}, nil, errors.Wrapf(err, "scenario %q", d.Name)
		}
		cfg.Chaos = engine
	}

	steps, err := d.steps()
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, steps, nil
}

func (d *Document) chaosRules() ([]chaos.Rule, error) {
	rules, err := BuildChaosRules(d.Chaos)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %q", d.Name)
	}
	return rules, nil
}

// BuildChaosRules converts document-form chaos rules into engine rules.
// Standalone rule files (see the chaos tool) share this conversion.
func BuildChaosRules(docs []ChaosDoc) ([]chaos.Rule, error) {
	rules := make([]chaos.Rule, 0, len(docs))
	for i, doc := range docs {
		rule := chaos.Rule{
			Kind:           chaos.Kind(doc.Type),
			Topic:          doc.Topic,
			AtCycle:        doc.AtCycle,
			AfterTopic:     doc.AfterTopic,
			Probability:    doc.Probability,
			DelayMS:        doc.DelayMS,
			FieldPath:      doc.FieldPath,
			FailureTopic:   doc.FailureTopic,
			FailureMessage: doc.FailureMessage,
			MinLatencyMS:   doc.MinLatencyMS,
			MaxLatencyMS:   doc.MaxLatencyMS,
		}
		if doc.NewValue != nil {
			value, err := schema.FromAny(doc.NewValue)
			if err != nil {
				return nil, errors.Wrapf(err, "chaos rule %d new_value", i+1)
			}
			rule.NewValue = value
		}
		if doc.FailurePayload != nil {
			payload, err := schema.FromAny(doc.FailurePayload)
			if err != nil {
				return nil, errors.Wrapf(err, "chaos rule %d failure_payload", i+1)
			}
			rule.FailurePayload = payload
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (d *Document) steps() ([]Step, error) {
	steps := make([]Step, 0, len(d.Steps))
	for i, doc := range d.Steps {
		step := Step{
			Type:        StepType(doc.Type),
			Name:        doc.Name,
			Cycles:      doc.Cycles,
			Topic:       doc.Topic,
			Count:       doc.Count,
			NonBlocking: doc.NonBlocking,
		}
		if step.Type == StepExecuteAction {
			return nil, fmt.Errorf("scenario %q step %d: execute_action is not representable in a document", d.Name, i+1)
		}
		for j, a := range doc.Assertions {
			built, err := buildAssertion(a)
			if err != nil {
				return nil, errors.Wrapf(err, "scenario %q step %d assertion %d", d.Name, i+1, j+1)
			}
			step.Assertions = append(step.Assertions, built)
		}
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("scenario %q step %d: %v", d.Name, i+1, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func buildAssertion(doc AssertionDoc) (assertion.Assertion, error) {
	switch doc.Type {
	case "event_count":
		if doc.Topic == "" {
			return nil, fmt.Errorf("event_count needs a topic")
		}
		if doc.Min == nil && doc.Max == nil && doc.Exact == nil {
			return nil, fmt.Errorf("event_count needs min, max or exact")
		}
		return assertion.EventCount{Topic: doc.Topic, Min: doc.Min, Max: doc.Max, Exact: doc.Exact}, nil

	case "event_sequence":
		if len(doc.Topics) == 0 {
			return nil, fmt.Errorf("event_sequence needs topics")
		}
		return assertion.EventSequence{Topics: doc.Topics, AllowGaps: doc.AllowGaps}, nil

	case "no_event":
		if doc.Topic == "" {
			return nil, fmt.Errorf("no_event needs a topic")
		}
		a := assertion.NoEvent{Topic: doc.Topic}
		if doc.Window != nil {
			a.Window = &assertion.CycleWindow{Start: doc.Window.Start, End: doc.Window.End}
		}
		return a, nil

	case "field_value":
		if doc.Topic == "" || doc.FieldPath == "" {
			return nil, fmt.Errorf("field_value needs a topic and a field_path")
		}
		operator := doc.Operator
		if operator == "" {
			operator = "=="
		}
		expected, err := schema.FromAny(doc.Value)
		if err != nil {
			return nil, err
		}
		return assertion.FieldValue{Topic: doc.Topic, Path: doc.FieldPath, Operator: operator, Expected: expected}, nil

	default:
		return nil, fmt.Errorf("unknown assertion type %q", doc.Type)
	}
}
