package chaos

import (
	"fmt"

	"main/internal/schema"

	"github.com/gobwas/glob"
)

// Kind identifies the effect a rule applies to a matching publish.
type Kind string

const (
	// KindDelay sleeps a fixed duration before the event is delivered.
	KindDelay Kind = "delay"
	// KindDrop suppresses delivery entirely. Terminating: no later rule
	// runs for the same event.
	KindDrop Kind = "drop"
	// KindModify rewrites one payload field before delivery.
	KindModify Kind = "modify"
	// KindInjectFailure emits an extra failure event and surfaces a
	// fault signal to the publish caller, while the original event
	// still flows.
	KindInjectFailure Kind = "inject_failure"
	// KindLatency sleeps a random duration in [min, max] before
	// delivery.
	KindLatency Kind = "latency"
)

// Rule is one conditional interception applied to outgoing events.
// Rules are evaluated in registration order; continuing rules stack,
// the first terminating rule wins.
type Rule struct {
	Kind  Kind
	Topic string

	// AtCycle gates the rule to one logical cycle. Nil means any.
	AtCycle *int
	// AfterTopic gates the rule to events immediately preceded by the
	// named topic.
	AfterTopic string
	// Probability gates the rule on a uniform draw. 0 means 1.
	Probability float64

	DelayMS int

	FieldPath string
	NewValue  schema.Value

	FailureTopic   string
	FailurePayload schema.Value
	FailureMessage string

	MinLatencyMS int
	MaxLatencyMS int

	pattern glob.Glob
}

func (r *Rule) withDefaults() {
	if r.Probability == 0 {
		r.Probability = 1
	}
	if r.Kind == KindLatency && r.MaxLatencyMS == 0 {
		r.MaxLatencyMS = 500
	}
}

// Validate checks the rule parameters and compiles the topic pattern.
func (r *Rule) Validate() error {
	r.withDefaults()
	if r.Topic == "" {
		return fmt.Errorf("chaos rule topic must not be empty")
	}
	if r.Probability < 0 || r.Probability > 1 {
		return fmt.Errorf("chaos rule probability must be between 0 and 1, got %g", r.Probability)
	}
	switch r.Kind {
	case KindDelay:
		if r.DelayMS <= 0 {
			return fmt.Errorf("delay rule for %q needs delay_ms > 0", r.Topic)
		}
	case KindDrop:
	case KindModify:
		if r.FieldPath == "" {
			return fmt.Errorf("modify rule for %q needs a field_path", r.Topic)
		}
	case KindInjectFailure:
		if r.FailureTopic == "" {
			return fmt.Errorf("inject_failure rule for %q needs a failure_topic", r.Topic)
		}
	case KindLatency:
		if r.MinLatencyMS < 0 || r.MaxLatencyMS < r.MinLatencyMS {
			return fmt.Errorf("latency rule for %q needs 0 <= min <= max, got [%d, %d]",
				r.Topic, r.MinLatencyMS, r.MaxLatencyMS)
		}
	default:
		return fmt.Errorf("unknown chaos rule type %q", r.Kind)
	}

	pattern, err := glob.Compile(r.Topic)
	if err != nil {
		return fmt.Errorf("chaos rule topic pattern %q: %v", r.Topic, err)
	}
	r.pattern = pattern
	return nil
}

// terminating rules suppress the original publish and stop evaluation.
func (r *Rule) terminating() bool {
	return r.Kind == KindDrop
}

// matches evaluates all trigger constraints except the probability
// draw, which the engine performs with its own seeded source.
func (r *Rule) matches(topic string, cycle int, lastTopic string) bool {
	if !r.pattern.Match(topic) {
		return false
	}
	if r.AtCycle != nil && cycle != *r.AtCycle {
		return false
	}
	if r.AfterTopic != "" && lastTopic != r.AfterTopic {
		return false
	}
	return true
}
