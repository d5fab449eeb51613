package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"main/internal/assertion"
	"main/internal/bus"
	"main/internal/chaos"
	"main/internal/mdg"
	"main/internal/recorder"
	"main/internal/schema"

	"github.com/yanun0323/logs"
)

// State tracks the orchestrator lifecycle. Completed and Aborted are
// terminal; an orchestrator drives exactly one run.
type State uint32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// sliceDuration bounds cycle-interval sleeps so a Stop call takes
// effect within one slice.
const sliceDuration = 100 * time.Millisecond

// Config wires one scenario run.
type Config struct {
	Name      string
	Generator mdg.Generator
	Bus       bus.Publisher
	// Chaos optionally intercepts every publish. Nil runs clean.
	Chaos *chaos.Engine

	// Topic is published for each generated data point. Empty means
	// "PriceTick".
	Topic string
	// Source stamps generated events. Empty means "Generator".
	Source string
	// SessionName names the recorded timeline. Empty means Name.
	SessionName string
	// CycleInterval is the pause between cycles. 0 runs flat out.
	CycleInterval time.Duration
	// InitialEvents are published before the first step runs.
	InitialEvents []bus.Event
}

func (c *Config) withDefaults() {
	if c.Name == "" {
		c.Name = "unnamed"
	}
	if c.Topic == "" {
		c.Topic = "PriceTick"
	}
	if c.Source == "" {
		c.Source = "Generator"
	}
	if c.SessionName == "" {
		c.SessionName = c.Name
	}
}

// Validate ensures the run can start.
func (c Config) Validate() error {
	if c.Generator == nil {
		return fmt.Errorf("scenario %q has no data generator", c.Name)
	}
	if c.Bus == nil {
		return fmt.Errorf("scenario %q has no bus", c.Name)
	}
	if c.CycleInterval < 0 {
		return fmt.Errorf("scenario %q cycle interval must be >= 0", c.Name)
	}
	return nil
}

// recordingPublisher appends every publish to the timeline before
// forwarding. Used when no chaos engine wraps the bus.
type recordingPublisher struct {
	rec  *recorder.Recorder
	next bus.Publisher
}

func (p recordingPublisher) Publish(topic string, payload schema.Value, source string) error {
	if err := p.rec.Record(topic, payload, source); err != nil && !errors.Is(err, recorder.ErrNotRecording) {
		return err
	}
	return p.next.Publish(topic, payload, source)
}

// Orchestrator drives one scenario run: strictly sequential steps over
// a generator, a (possibly chaos-wrapped) bus, a recorder and the
// assertion engine. The orchestrator itself is single-threaded; only
// Stop and State may be called from other goroutines.
type Orchestrator struct {
	cfg     Config
	rec     *recorder.Recorder
	checker *assertion.Engine
	clock   recorder.Clock

	state   uint32
	stopped uint32

	cycle  int
	faults int
	report *Report
}

// NewOrchestrator creates an orchestrator with validation.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:     cfg,
		rec:     recorder.NewRecorder(),
		checker: assertion.NewEngine(),
		clock:   recorder.SystemClock(),
	}, nil
}

// WithClock swaps the clock used for cycle pacing. Test hook.
func (o *Orchestrator) WithClock(clock recorder.Clock) *Orchestrator {
	if clock != nil {
		o.clock = clock
	}
	return o
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return State(atomic.LoadUint32(&o.state))
}

// Stop requests a cooperative stop. The run aborts at the next cycle
// or sleep-slice boundary.
func (o *Orchestrator) Stop() {
	atomic.StoreUint32(&o.stopped, 1)
}

func (o *Orchestrator) stopRequested() bool {
	return atomic.LoadUint32(&o.stopped) == 1
}

// Name returns the scenario name.
func (o *Orchestrator) Name() string { return o.cfg.Name }

// Report returns the final report, or nil while the run is live.
func (o *Orchestrator) Report() *Report { return o.report }

// Run executes the steps in order and returns the final report.
// Malformed steps abort before anything executes. Failures inside a
// step are captured into its result; teardown (chaos deactivation,
// recorder stop) always runs.
func (o *Orchestrator) Run(ctx context.Context, steps []Step) (*Report, error) {
	if !atomic.CompareAndSwapUint32(&o.state, uint32(StateIdle), uint32(StateRunning)) {
		return nil, fmt.Errorf("scenario %q already ran", o.cfg.Name)
	}

	for i, step := range steps {
		if err := step.Validate(); err != nil {
			atomic.StoreUint32(&o.state, uint32(StateAborted))
			return nil, fmt.Errorf("scenario %q step %d: %v", o.cfg.Name, i+1, err)
		}
	}

	if err := o.rec.Start(o.cfg.SessionName); err != nil {
		atomic.StoreUint32(&o.state, uint32(StateAborted))
		return nil, err
	}

	pub, err := o.wrapBus()
	if err != nil {
		o.rec.Stop()
		atomic.StoreUint32(&o.state, uint32(StateAborted))
		return nil, err
	}

	startTime := time.Now().UTC()
	logs.Infof("scenario %q starting with %d step(s)", o.cfg.Name, len(steps))

	aborted := false
	var results []StepResult
	for _, event := range o.cfg.InitialEvents {
		if err := o.publish(pub, event.Topic, event.Payload, event.Source); err != nil {
			o.teardown()
			atomic.StoreUint32(&o.state, uint32(StateAborted))
			return nil, fmt.Errorf("scenario %q initial event %s: %v", o.cfg.Name, event.Topic, err)
		}
	}

	for i, step := range steps {
		if o.stopRequested() {
			aborted = true
			results = append(results, StepResult{
				Name: step.Label(), Type: step.Type,
				Errored: true, Error: "scenario stopped",
			})
			break
		}

		logs.Infof("scenario %q step %d/%d: %s", o.cfg.Name, i+1, len(steps), step.Label())
		result := o.executeStep(ctx, pub, step)
		results = append(results, result)

		if !result.Success {
			logs.Warnf("scenario %q step %s failed: %s", o.cfg.Name, step.Label(), result.Error)
			if !step.NonBlocking {
				aborted = true
				break
			}
		}
	}

	timeline := o.teardown()
	endTime := time.Now().UTC()

	if aborted {
		atomic.StoreUint32(&o.state, uint32(StateAborted))
	} else {
		atomic.StoreUint32(&o.state, uint32(StateCompleted))
	}

	o.report = o.buildReport(startTime, endTime, len(steps), results, timeline)
	logs.Infof("scenario %q %s: %s", o.cfg.Name, o.State(), o.report.Status)
	return o.report, nil
}

func (o *Orchestrator) wrapBus() (bus.Publisher, error) {
	if o.cfg.Chaos != nil {
		return o.cfg.Chaos.Wrap(o.cfg.Bus, o.rec)
	}
	return recordingPublisher{rec: o.rec, next: o.cfg.Bus}, nil
}

func (o *Orchestrator) teardown() recorder.Timeline {
	if o.cfg.Chaos != nil {
		o.cfg.Chaos.Deactivate()
	}
	return o.rec.Stop()
}

// publish forwards one event, absorbing injected faults into the fault
// counter. Real transport failures come back as errors.
func (o *Orchestrator) publish(pub bus.Publisher, topic string, payload schema.Value, source string) error {
	err := pub.Publish(topic, payload, source)
	if err == nil {
		return nil
	}
	if errors.Is(err, chaos.ErrFaultInjected) {
		o.faults++
		logs.Warnf("scenario %q absorbed injected fault: %v", o.cfg.Name, err)
		return nil
	}
	return err
}

func (o *Orchestrator) executeStep(ctx context.Context, pub bus.Publisher, step Step) (result StepResult) {
	start := time.Now().UTC()
	result.Name = step.Label()
	result.Type = step.Type
	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Errored = true
			result.Error = fmt.Sprintf("step panicked: %v", r)
		}
		result.DurationSeconds = time.Since(start).Seconds()
	}()

	switch step.Type {
	case StepWaitCycles:
		return o.waitCycles(ctx, pub, step)
	case StepWaitEvent:
		return o.waitEvent(ctx, pub, step)
	case StepRunAssertions:
		return o.runAssertions(step)
	case StepExecuteAction:
		return o.executeAction(step)
	case StepGenerateData:
		return o.generateData(step)
	default:
		result.Errored = true
		result.Error = fmt.Sprintf("unknown step type %q", step.Type)
		return result
	}
}

// advanceCycle bumps the cycle counter everywhere it is observed, then
// generates and publishes one data point.
func (o *Orchestrator) advanceCycle(ctx context.Context, pub bus.Publisher) error {
	o.cycle++
	o.rec.SetCycle(o.cycle)
	if o.cfg.Chaos != nil {
		o.cfg.Chaos.SetCycle(o.cycle)
	}

	generated := o.cfg.Generator.Next()
	logs.Infof("scenario %q cycle %d generated %s", o.cfg.Name, o.cycle, generated.PrimaryValue)
	if err := o.publish(pub, o.cfg.Topic, generated.Payload, o.cfg.Source); err != nil {
		return err
	}
	return o.pause(ctx, o.cfg.CycleInterval)
}

// pause sleeps in slices so Stop and context cancellation take effect
// within ~100 ms.
func (o *Orchestrator) pause(ctx context.Context, d time.Duration) error {
	for remaining := d; remaining > 0; {
		if o.stopRequested() {
			return nil
		}
		step := remaining
		if step > sliceDuration {
			step = sliceDuration
		}
		if err := o.clock.Sleep(ctx, step); err != nil {
			return err
		}
		remaining -= step
	}
	return nil
}

func (o *Orchestrator) waitCycles(ctx context.Context, pub bus.Publisher, step Step) StepResult {
	result := StepResult{Name: step.Label(), Type: step.Type}
	cycles := step.Cycles
	if cycles == 0 {
		cycles = 1
	}

	faultsBefore := o.faults
	for i := 0; i < cycles; i++ {
		if o.stopRequested() {
			result.Errored = true
			result.Error = "scenario stopped"
			result.CyclesCompleted = i
			return result
		}
		if err := o.advanceCycle(ctx, pub); err != nil {
			result.Errored = true
			result.Error = err.Error()
			result.CyclesCompleted = i
			return result
		}
	}

	result.Success = true
	result.CyclesCompleted = cycles
	result.FaultsInjected = o.faults - faultsBefore
	return result
}

func (o *Orchestrator) waitEvent(ctx context.Context, pub bus.Publisher, step Step) StepResult {
	result := StepResult{Name: step.Label(), Type: step.Type}
	timeout := step.Cycles
	if timeout == 0 {
		timeout = 100
	}

	startCycle := o.cycle
	for o.cycle-startCycle < timeout {
		if o.rec.TopicCount(step.Topic) > 0 {
			result.Success = true
			result.OccurredAtCycle = o.cycle
			return result
		}
		if o.stopRequested() {
			result.Errored = true
			result.Error = "scenario stopped"
			return result
		}
		if err := o.advanceCycle(ctx, pub); err != nil {
			result.Errored = true
			result.Error = err.Error()
			return result
		}
	}

	if o.rec.TopicCount(step.Topic) > 0 {
		result.Success = true
		result.OccurredAtCycle = o.cycle
		return result
	}
	result.Error = fmt.Sprintf("event %s did not occur within %d cycle(s)", step.Topic, timeout)
	return result
}

func (o *Orchestrator) runAssertions(step Step) StepResult {
	result := StepResult{Name: step.Label(), Type: step.Type}
	report := o.checker.Check(step.Assertions, o.rec.Snapshot())
	result.Assertions = &report
	result.Success = report.AllPassed()
	if !result.Success {
		result.Error = report.FailureSummary()
	}
	return result
}

func (o *Orchestrator) executeAction(step Step) (result StepResult) {
	result = StepResult{Name: step.Label(), Type: step.Type}
	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Errored = true
			result.Error = fmt.Sprintf("action panicked: %v", r)
		}
	}()
	if err := step.Action(); err != nil {
		result.Errored = true
		result.Error = err.Error()
		return result
	}
	result.Success = true
	return result
}

func (o *Orchestrator) generateData(step Step) StepResult {
	result := StepResult{Name: step.Label(), Type: step.Type}
	count := step.Count
	if count == 0 {
		count = 1
	}
	for i := 0; i < count; i++ {
		generated := o.cfg.Generator.Next()
		logs.Infof("scenario %q warm-up generated %s", o.cfg.Name, generated.PrimaryValue)
	}
	result.Success = true
	result.Generated = count
	return result
}
