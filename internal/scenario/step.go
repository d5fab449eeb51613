package scenario

import (
	"fmt"

	"main/internal/assertion"
)

// StepType identifies what a scenario step does.
type StepType string

const (
	// StepWaitCycles advances n cycles, generating and publishing one
	// data point per cycle.
	StepWaitCycles StepType = "wait_cycles"
	// StepWaitEvent advances cycles until a topic appears or the cycle
	// timeout is exhausted.
	StepWaitEvent StepType = "wait_event"
	// StepRunAssertions checks assertions against a timeline snapshot.
	StepRunAssertions StepType = "run_assertions"
	// StepExecuteAction invokes a caller-supplied callback.
	StepExecuteAction StepType = "execute_action"
	// StepGenerateData produces generator outputs without advancing
	// the cycle counter. Warm-up.
	StepGenerateData StepType = "generate_data"
)

// Step is one unit of a scenario. Steps run strictly in sequence; a
// failing step aborts the scenario unless marked NonBlocking.
type Step struct {
	Type StepType
	Name string

	// Cycles is the count for wait_cycles and the timeout budget for
	// wait_event. 0 means 1 for wait_cycles and 100 for wait_event.
	Cycles int
	// Topic is the event wait_event watches for.
	Topic string
	// Assertions are checked by run_assertions.
	Assertions []assertion.Assertion
	// Action runs for execute_action. A panic inside it fails the
	// step, it does not crash the run.
	Action func() error
	// Count is how many outputs generate_data produces. 0 means 1.
	Count int

	// NonBlocking lets the scenario continue past a failure of this
	// step. The failure still lands in the report.
	NonBlocking bool
}

// Label names the step for logs and the report.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return string(s.Type)
}

// Validate rejects malformed steps before any step executes.
func (s Step) Validate() error {
	switch s.Type {
	case StepWaitCycles:
		if s.Cycles < 0 {
			return fmt.Errorf("wait_cycles needs cycles >= 0")
		}
	case StepWaitEvent:
		if s.Topic == "" {
			return fmt.Errorf("wait_event needs a topic")
		}
		if s.Cycles < 0 {
			return fmt.Errorf("wait_event needs a timeout >= 0 cycles")
		}
	case StepRunAssertions:
		if len(s.Assertions) == 0 {
			return fmt.Errorf("run_assertions needs at least one assertion")
		}
	case StepExecuteAction:
		if s.Action == nil {
			return fmt.Errorf("execute_action needs an action")
		}
	case StepGenerateData:
		if s.Count < 0 {
			return fmt.Errorf("generate_data needs count >= 0")
		}
	default:
		return fmt.Errorf("unknown step type %q", s.Type)
	}
	return nil
}

// StepResult is the outcome of one executed step.
type StepResult struct {
	Name    string   `json:"name"`
	Type    StepType `json:"type"`
	Success bool     `json:"success"`
	// Errored marks failures caused by unexpected errors (panics,
	// transport failures) rather than assertion or timeout outcomes.
	Errored         bool    `json:"errored,omitempty"`
	Error           string  `json:"error,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`

	CyclesCompleted int               `json:"cycles_completed,omitempty"`
	OccurredAtCycle int               `json:"occurred_at_cycle,omitempty"`
	FaultsInjected  int               `json:"faults_injected,omitempty"`
	Generated       int               `json:"generated,omitempty"`
	Assertions      *assertion.Report `json:"assertions,omitempty"`
}
