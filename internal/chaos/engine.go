package chaos

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"main/internal/bus"
	"main/internal/recorder"
	"main/internal/schema"

	"github.com/yanun0323/logs"
)

// ErrFaultInjected marks a publish whose fault was deliberate. Callers
// separate injected chaos from real transport failures with errors.Is.
var ErrFaultInjected = errors.New("chaos fault injected")

// FaultError carries the detail of one injected fault. It unwraps to
// ErrFaultInjected.
type FaultError struct {
	Topic        string
	FailureTopic string
	Message      string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("injected %s on %s publish: %s", e.FailureTopic, e.Topic, e.Message)
}

func (e *FaultError) Unwrap() error { return ErrFaultInjected }

// Config controls chaos interception behavior.
type Config struct {
	// Seed fixes the probability draws. 0 seeds from the clock.
	Seed  int64
	Rules []Rule
}

// Validate ensures every rule is well-formed. Rule validation also
// compiles the topic patterns, so Validate must run before use.
func (c *Config) Validate() error {
	for i := range c.Rules {
		if err := c.Rules[i].Validate(); err != nil {
			return fmt.Errorf("chaos rule %d: %v", i, err)
		}
	}
	return nil
}

// Statistics summarizes what an engine has seen and done.
type Statistics struct {
	TotalEvents int            `json:"total_events"`
	TotalCycles int            `json:"total_cycles"`
	Rules       int            `json:"rules"`
	Applied     map[Kind]int   `json:"applied"`
	EventCounts map[string]int `json:"event_counts"`
}

// Engine intercepts publish calls and applies matching rules in
// registration order. Continuing rules (delay, modify, latency,
// inject_failure) stack; the first terminating rule (drop) suppresses
// the event. All trigger state is guarded by one mutex, so concurrent
// publishers serialize through the engine.
type Engine struct {
	mu        sync.Mutex
	cfg       Config
	rng       *rand.Rand
	sleep     func(time.Duration)
	active    bool
	wrapped   bool
	cycle     int
	lastTopic string

	totalEvents int
	applied     map[Kind]int
	eventCounts map[string]int
}

// NewEngine creates a chaos engine with validation.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Engine{
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		sleep:       time.Sleep,
		applied:     make(map[Kind]int),
		eventCounts: make(map[string]int),
	}, nil
}

// WithSleep swaps the sleep implementation. Test hook.
func (e *Engine) WithSleep(sleep func(time.Duration)) *Engine {
	if sleep != nil {
		e.sleep = sleep
	}
	return e
}

// Wrap decorates next with chaos interception, recording every publish
// call into rec before rule evaluation. The decoration is single-slot:
// a second Wrap before Deactivate fails.
func (e *Engine) Wrap(next bus.Publisher, rec *recorder.Recorder) (bus.Publisher, error) {
	if next == nil {
		return nil, fmt.Errorf("chaos wrap target bus is nil")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.wrapped {
		return nil, fmt.Errorf("chaos engine already wraps a bus")
	}
	e.wrapped = true
	e.active = true
	logs.Infof("chaos engine wrapping bus with %d rule(s)", len(e.cfg.Rules))
	return &wrappedBus{engine: e, next: next, rec: rec}, nil
}

// Deactivate stops rule evaluation and releases the wrap slot. The
// decorator keeps recording and forwarding untouched events.
func (e *Engine) Deactivate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = false
	e.wrapped = false
	logs.Infof("chaos engine deactivated after %d event(s)", e.totalEvents)
}

// SetCycle updates the logical cycle used by at_cycle triggers.
func (e *Engine) SetCycle(cycle int) {
	e.mu.Lock()
	e.cycle = cycle
	e.mu.Unlock()
}

// AdvanceCycle increments the logical cycle and returns the new value.
func (e *Engine) AdvanceCycle() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cycle++
	return e.cycle
}

// Statistics returns a copy of the engine counters.
func (e *Engine) Statistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	stats := Statistics{
		TotalEvents: e.totalEvents,
		TotalCycles: e.cycle,
		Rules:       len(e.cfg.Rules),
		Applied:     make(map[Kind]int, len(e.applied)),
		EventCounts: make(map[string]int, len(e.eventCounts)),
	}
	for kind, n := range e.applied {
		stats.Applied[kind] = n
	}
	for topic, n := range e.eventCounts {
		stats.EventCounts[topic] = n
	}
	return stats
}

type wrappedBus struct {
	engine *Engine
	next   bus.Publisher
	rec    *recorder.Recorder
}

// Publish records the call, applies matching rules in order, and
// forwards the (possibly modified) event unless a drop rule fired.
// An inject_failure rule still forwards the original event; the fault
// is surfaced in the returned error.
func (w *wrappedBus) Publish(topic string, payload schema.Value, source string) error {
	if w.rec != nil {
		if err := w.rec.Record(topic, payload, source); err != nil && !errors.Is(err, recorder.ErrNotRecording) {
			return err
		}
	}

	payload, suppressed, failures, faultErr, err := w.engine.intercept(topic, payload)
	if err != nil {
		return err
	}

	for _, failure := range failures {
		if w.rec != nil {
			if err := w.rec.Record(failure.Topic, failure.Payload, failure.Source); err != nil && !errors.Is(err, recorder.ErrNotRecording) {
				return err
			}
		}
		if err := w.next.Publish(failure.Topic, failure.Payload, failure.Source); err != nil {
			return err
		}
	}

	if suppressed {
		return faultErr
	}
	if err := w.next.Publish(topic, payload, source); err != nil {
		return err
	}
	return faultErr
}

// intercept runs rule evaluation under the engine lock and returns the
// payload to deliver plus any failure events to emit first. Sleeps
// happen while the lock is held: the engine is single-writer over its
// trigger state, so a delayed event also delays later publishers,
// matching a serialized bus.
func (e *Engine) intercept(topic string, payload schema.Value) (out schema.Value, suppressed bool, failures []bus.Event, faultErr error, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.totalEvents++
	e.eventCounts[topic]++
	lastTopic := e.lastTopic
	e.lastTopic = topic

	if !e.active {
		return payload, false, nil, nil, nil
	}

	for i := range e.cfg.Rules {
		rule := &e.cfg.Rules[i]
		if !rule.matches(topic, e.cycle, lastTopic) {
			continue
		}
		if rule.Probability < 1 && e.rng.Float64() > rule.Probability {
			continue
		}
		e.applied[rule.Kind]++

		switch rule.Kind {
		case KindDrop:
			logs.Infof("chaos drop: %s suppressed", topic)
			return payload, true, failures, faultErr, nil

		case KindDelay:
			logs.Infof("chaos delay: %s held for %dms", topic, rule.DelayMS)
			e.sleep(time.Duration(rule.DelayMS) * time.Millisecond)

		case KindLatency:
			span := rule.MaxLatencyMS - rule.MinLatencyMS
			delayMS := rule.MinLatencyMS
			if span > 0 {
				delayMS += e.rng.Intn(span + 1)
			}
			logs.Infof("chaos latency: %s held for %dms", topic, delayMS)
			e.sleep(time.Duration(delayMS) * time.Millisecond)

		case KindModify:
			modified := payload.Clone()
			if err := modified.SetPath(rule.FieldPath, rule.NewValue); err != nil {
				return payload, false, failures, faultErr, fmt.Errorf("chaos modify %s: %v", topic, err)
			}
			logs.Infof("chaos modify: %s.%s = %s", topic, rule.FieldPath, rule.NewValue.String())
			payload = modified

		case KindInjectFailure:
			message := rule.FailureMessage
			if message == "" {
				message = fmt.Sprintf("chaos: %s failed", topic)
			}
			failurePayload := rule.FailurePayload
			if failurePayload.Kind == schema.KindNull {
				failurePayload = schema.MapOf(map[string]schema.Value{
					"error": schema.String(message),
				})
			}
			faultErr = &FaultError{Topic: topic, FailureTopic: rule.FailureTopic, Message: message}
			failures = append(failures, bus.Event{
				Topic:   rule.FailureTopic,
				Payload: failurePayload,
				Source:  "ChaosEngine",
			})
			logs.Infof("chaos fault: injecting %s triggered by %s", rule.FailureTopic, topic)
		}
	}
	return payload, false, failures, faultErr, nil
}
