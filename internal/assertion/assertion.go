package assertion

import (
	"fmt"
	"strings"

	"main/internal/recorder"
	"main/internal/schema"
)

// Result is the outcome of one assertion check. Produced once, never
// mutated.
type Result struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

// Assertion is one declarative condition over a timeline snapshot.
// Check must be pure: it only reads the snapshot, so the same snapshot
// always yields the same result.
type Assertion interface {
	Name() string
	Check(tl recorder.Timeline) Result
}

// EventCount asserts how many times a topic appeared. Topics match by
// exact equality. Exact wins over Min/Max when both are supplied.
type EventCount struct {
	Topic string
	Min   *int
	Max   *int
	Exact *int
}

func (a EventCount) Name() string { return "event_count." + a.Topic }

func (a EventCount) Check(tl recorder.Timeline) Result {
	count := 0
	for _, e := range tl.Events {
		if e.Topic == a.Topic {
			count++
		}
	}

	if a.Exact != nil {
		return Result{
			Name:     a.Name(),
			Passed:   count == *a.Exact,
			Message:  fmt.Sprintf("expected exactly %d %s events, got %d", *a.Exact, a.Topic, count),
			Expected: fmt.Sprintf("%d", *a.Exact),
			Actual:   fmt.Sprintf("%d", count),
		}
	}

	passed := true
	var problems []string
	if a.Min != nil && count < *a.Min {
		passed = false
		problems = append(problems, fmt.Sprintf("expected at least %d, got %d", *a.Min, count))
	}
	if a.Max != nil && count > *a.Max {
		passed = false
		problems = append(problems, fmt.Sprintf("expected at most %d, got %d", *a.Max, count))
	}

	message := fmt.Sprintf("%s occurred %d times", a.Topic, count)
	if !passed {
		message = fmt.Sprintf("%s: %s", a.Topic, strings.Join(problems, "; "))
	}
	return Result{
		Name:     a.Name(),
		Passed:   passed,
		Message:  message,
		Expected: a.bounds(),
		Actual:   fmt.Sprintf("%d", count),
	}
}

func (a EventCount) bounds() string {
	switch {
	case a.Min != nil && a.Max != nil:
		return fmt.Sprintf("%d-%d", *a.Min, *a.Max)
	case a.Min != nil:
		return fmt.Sprintf(">=%d", *a.Min)
	case a.Max != nil:
		return fmt.Sprintf("<=%d", *a.Max)
	default:
		return "any"
	}
}

// EventSequence asserts that topics appeared in the given order. With
// AllowGaps the snapshot is first projected to only the expected
// topics, so unrelated topics may interleave freely; without it the
// expected topics must appear as one contiguous run.
type EventSequence struct {
	Topics    []string
	AllowGaps bool
}

func (a EventSequence) Name() string {
	return fmt.Sprintf("event_sequence.%d_events", len(a.Topics))
}

func (a EventSequence) Check(tl recorder.Timeline) Result {
	actual := make([]string, 0, len(tl.Events))
	if a.AllowGaps {
		expected := make(map[string]bool, len(a.Topics))
		for _, topic := range a.Topics {
			expected[topic] = true
		}
		for _, e := range tl.Events {
			if expected[e.Topic] {
				actual = append(actual, e.Topic)
			}
		}
	} else {
		for _, e := range tl.Events {
			actual = append(actual, e.Topic)
		}
	}

	passed := a.AllowGaps && isSubsequence(a.Topics, actual) ||
		!a.AllowGaps && hasContiguousRun(a.Topics, actual)

	message := fmt.Sprintf("sequence %v observed", a.Topics)
	if !passed {
		message = fmt.Sprintf("expected sequence %v, got %v", a.Topics, actual)
	}
	return Result{
		Name:     a.Name(),
		Passed:   passed,
		Message:  message,
		Expected: fmt.Sprintf("%v", a.Topics),
		Actual:   fmt.Sprintf("%v", actual),
	}
}

func isSubsequence(expected, actual []string) bool {
	idx := 0
	for _, topic := range actual {
		if idx < len(expected) && topic == expected[idx] {
			idx++
		}
	}
	return idx == len(expected)
}

func hasContiguousRun(expected, actual []string) bool {
	if len(expected) == 0 {
		return true
	}
	for start := 0; start+len(expected) <= len(actual); start++ {
		match := true
		for i, topic := range expected {
			if actual[start+i] != topic {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// CycleWindow is an inclusive [Start, End] range of logical cycles.
type CycleWindow struct {
	Start int
	End   int
}

// NoEvent asserts a topic never appeared, optionally restricted to
// events recorded within a cycle window.
type NoEvent struct {
	Topic  string
	Window *CycleWindow
}

func (a NoEvent) Name() string { return "no_event." + a.Topic }

func (a NoEvent) Check(tl recorder.Timeline) Result {
	count := 0
	for _, e := range tl.Events {
		if e.Topic != a.Topic {
			continue
		}
		if a.Window != nil && (e.Cycle < a.Window.Start || e.Cycle > a.Window.End) {
			continue
		}
		count++
	}

	suffix := ""
	if a.Window != nil {
		suffix = fmt.Sprintf(" during cycles %d-%d", a.Window.Start, a.Window.End)
	}
	return Result{
		Name:     a.Name(),
		Passed:   count == 0,
		Message:  fmt.Sprintf("expected no %s%s, found %d", a.Topic, suffix, count),
		Expected: "0",
		Actual:   fmt.Sprintf("%d", count),
	}
}

// FieldValue asserts a comparison against one payload field of the
// first event with a matching topic. Supported operators: ==, !=, >,
// <, >=, <=, contains, not_contains.
type FieldValue struct {
	Topic    string
	Path     string
	Operator string
	Expected schema.Value
}

func (a FieldValue) Name() string {
	return fmt.Sprintf("field_value.%s.%s", a.Topic, a.Path)
}

func (a FieldValue) Check(tl recorder.Timeline) Result {
	result := Result{
		Name:     a.Name(),
		Expected: fmt.Sprintf("%s %s", a.Operator, a.Expected.String()),
	}

	var found *recorder.RecordedEvent
	for i := range tl.Events {
		if tl.Events[i].Topic == a.Topic {
			found = &tl.Events[i]
			break
		}
	}
	if found == nil {
		result.Message = fmt.Sprintf("no %s event recorded", a.Topic)
		return result
	}

	actual, err := found.Payload.Resolve(a.Path)
	if err != nil {
		result.Message = fmt.Sprintf("field %s of %s: %v", a.Path, a.Topic, err)
		return result
	}
	result.Actual = actual.String()

	passed, err := compare(actual, a.Operator, a.Expected)
	if err != nil {
		result.Message = fmt.Sprintf("field %s of %s: %v", a.Path, a.Topic, err)
		return result
	}

	result.Passed = passed
	verdict := "holds"
	if !passed {
		verdict = "failed"
	}
	result.Message = fmt.Sprintf("%s.%s %s %s %s (actual %s)",
		a.Topic, a.Path, a.Operator, a.Expected.String(), verdict, actual.String())
	return result
}

func compare(actual schema.Value, operator string, expected schema.Value) (bool, error) {
	switch operator {
	case "==":
		return actual.Equal(expected), nil
	case "!=":
		return !actual.Equal(expected), nil
	case ">", "<", ">=", "<=":
		cmp, err := actual.Compare(expected)
		if err != nil {
			return false, err
		}
		switch operator {
		case ">":
			return cmp > 0, nil
		case "<":
			return cmp < 0, nil
		case ">=":
			return cmp >= 0, nil
		default:
			return cmp <= 0, nil
		}
	case "contains":
		return actual.Contains(expected)
	case "not_contains":
		ok, err := actual.Contains(expected)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return false, fmt.Errorf("unknown operator %q", operator)
	}
}

// Custom delegates to a caller-supplied predicate over the snapshot.
type Custom struct {
	Label string
	Fn    func(tl recorder.Timeline) Result
}

func (a Custom) Name() string { return a.Label }

func (a Custom) Check(tl recorder.Timeline) Result {
	result := a.Fn(tl)
	if result.Name == "" {
		result.Name = a.Label
	}
	return result
}
