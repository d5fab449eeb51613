package assertion

import (
	"testing"

	"main/internal/recorder"
	"main/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func timelineOf(topics ...string) recorder.Timeline {
	tl := recorder.Timeline{SessionName: "test"}
	for i, topic := range topics {
		tl.Events = append(tl.Events, recorder.RecordedEvent{
			OffsetMS: int64(i * 10),
			Topic:    topic,
			Payload:  schema.Null(),
			Source:   "test",
		})
	}
	return tl
}

func TestEventCount(t *testing.T) {
	tl := timelineOf("Tick", "Tick", "Tick", "Done")

	for _, tc := range []struct {
		name   string
		a      EventCount
		passed bool
	}{
		{"exact match", EventCount{Topic: "Tick", Exact: intPtr(3)}, true},
		{"exact mismatch", EventCount{Topic: "Tick", Exact: intPtr(2)}, false},
		{"min satisfied", EventCount{Topic: "Tick", Min: intPtr(2)}, true},
		{"min violated", EventCount{Topic: "Tick", Min: intPtr(5)}, false},
		{"max satisfied", EventCount{Topic: "Tick", Max: intPtr(3)}, true},
		{"max violated", EventCount{Topic: "Tick", Max: intPtr(2)}, false},
		{"range", EventCount{Topic: "Tick", Min: intPtr(1), Max: intPtr(5)}, true},
		{"exact wins over conflicting bounds", EventCount{Topic: "Tick", Exact: intPtr(3), Min: intPtr(10)}, true},
		{"exact zero on absent topic", EventCount{Topic: "Missing", Exact: intPtr(0)}, true},
		{"min one on absent topic", EventCount{Topic: "Missing", Min: intPtr(1)}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			result := tc.a.Check(tl)
			assert.Equal(t, tc.passed, result.Passed, result.Message)
		})
	}
}

func TestEventSequenceWithGaps(t *testing.T) {
	tl := timelineOf("Started", "Tick", "Processing", "Tick", "Completed")

	result := EventSequence{
		Topics:    []string{"Started", "Processing", "Completed"},
		AllowGaps: true,
	}.Check(tl)
	assert.True(t, result.Passed, result.Message)

	result = EventSequence{
		Topics:    []string{"Processing", "Started"},
		AllowGaps: true,
	}.Check(tl)
	assert.False(t, result.Passed)
}

func TestEventSequenceContiguous(t *testing.T) {
	tl := timelineOf("Started", "Tick", "Processing", "Completed")

	result := EventSequence{Topics: []string{"Processing", "Completed"}}.Check(tl)
	assert.True(t, result.Passed, result.Message)

	result = EventSequence{Topics: []string{"Started", "Processing"}}.Check(tl)
	assert.False(t, result.Passed, "interleaved Tick must break a contiguous match")
}

func TestNoEventWindow(t *testing.T) {
	tl := recorder.Timeline{SessionName: "test"}
	tl.Events = append(tl.Events, recorder.RecordedEvent{Topic: "Failure", Cycle: 12, Payload: schema.Null()})

	result := NoEvent{Topic: "Failure", Window: &CycleWindow{Start: 0, End: 10}}.Check(tl)
	assert.True(t, result.Passed, result.Message)

	tl.Events[0].Cycle = 5
	result = NoEvent{Topic: "Failure", Window: &CycleWindow{Start: 0, End: 10}}.Check(tl)
	assert.False(t, result.Passed)

	result = NoEvent{Topic: "Failure"}.Check(tl)
	assert.False(t, result.Passed)

	result = NoEvent{Topic: "Other"}.Check(tl)
	assert.True(t, result.Passed)
}

func TestNoEventWindowInclusive(t *testing.T) {
	tl := recorder.Timeline{SessionName: "test"}
	tl.Events = append(tl.Events, recorder.RecordedEvent{Topic: "Failure", Cycle: 10, Payload: schema.Null()})

	result := NoEvent{Topic: "Failure", Window: &CycleWindow{Start: 0, End: 10}}.Check(tl)
	assert.False(t, result.Passed, "window bounds are inclusive")
}

func fieldTimeline() recorder.Timeline {
	payload := schema.MapOf(map[string]schema.Value{
		"symbol": schema.String("BTCUSDT"),
		"price": schema.MapOf(map[string]schema.Value{
			"value": schema.Number(50000),
		}),
		"tags": schema.ListOf(schema.String("spot"), schema.String("maker")),
	})
	return recorder.Timeline{
		SessionName: "test",
		Events: []recorder.RecordedEvent{
			{Topic: "OrderFilled", Payload: payload, Source: "test"},
			{Topic: "OrderFilled", Payload: schema.Null(), Source: "test"},
		},
	}
}

func TestFieldValueOperators(t *testing.T) {
	tl := fieldTimeline()

	for _, tc := range []struct {
		name   string
		a      FieldValue
		passed bool
	}{
		{"eq", FieldValue{Topic: "OrderFilled", Path: "price.value", Operator: "==", Expected: schema.Number(50000)}, true},
		{"ne", FieldValue{Topic: "OrderFilled", Path: "price.value", Operator: "!=", Expected: schema.Number(1)}, true},
		{"gt", FieldValue{Topic: "OrderFilled", Path: "price.value", Operator: ">", Expected: schema.Number(49999)}, true},
		{"lt fails", FieldValue{Topic: "OrderFilled", Path: "price.value", Operator: "<", Expected: schema.Number(49999)}, false},
		{"ge boundary", FieldValue{Topic: "OrderFilled", Path: "price.value", Operator: ">=", Expected: schema.Number(50000)}, true},
		{"le boundary", FieldValue{Topic: "OrderFilled", Path: "price.value", Operator: "<=", Expected: schema.Number(50000)}, true},
		{"contains substring", FieldValue{Topic: "OrderFilled", Path: "symbol", Operator: "contains", Expected: schema.String("USDT")}, true},
		{"contains list member", FieldValue{Topic: "OrderFilled", Path: "tags", Operator: "contains", Expected: schema.String("maker")}, true},
		{"not_contains", FieldValue{Topic: "OrderFilled", Path: "symbol", Operator: "not_contains", Expected: schema.String("ETH")}, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			result := tc.a.Check(tl)
			assert.Equal(t, tc.passed, result.Passed, result.Message)
		})
	}
}

func TestFieldValueUsesFirstMatchingEvent(t *testing.T) {
	// The second OrderFilled has a null payload; only the first counts.
	result := FieldValue{
		Topic: "OrderFilled", Path: "symbol", Operator: "==", Expected: schema.String("BTCUSDT"),
	}.Check(fieldTimeline())
	assert.True(t, result.Passed, result.Message)
}

func TestFieldValueFailures(t *testing.T) {
	tl := fieldTimeline()

	result := FieldValue{Topic: "Missing", Path: "symbol", Operator: "==", Expected: schema.Null()}.Check(tl)
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "no Missing event")

	result = FieldValue{Topic: "OrderFilled", Path: "price.absent", Operator: "==", Expected: schema.Null()}.Check(tl)
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "absent")

	result = FieldValue{Topic: "OrderFilled", Path: "symbol", Operator: "~=", Expected: schema.Null()}.Check(tl)
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "operator")
}

func TestCustomAssertion(t *testing.T) {
	called := 0
	a := Custom{Label: "at_least_one_event", Fn: func(tl recorder.Timeline) Result {
		called++
		return Result{Passed: len(tl.Events) > 0, Message: "checked"}
	}}

	result := a.Check(timelineOf("Tick"))
	assert.True(t, result.Passed)
	assert.Equal(t, "at_least_one_event", result.Name)
	assert.Equal(t, 1, called)
}

func TestEngineCheckAggregatesAndIsIdempotent(t *testing.T) {
	tl := timelineOf("Started", "Tick", "Completed")
	assertions := []Assertion{
		EventCount{Topic: "Tick", Exact: intPtr(1)},
		EventCount{Topic: "Tick", Min: intPtr(5)},
		EventSequence{Topics: []string{"Started", "Completed"}, AllowGaps: true},
	}

	engine := NewEngine()
	first := engine.Check(assertions, tl)
	second := engine.Check(assertions, tl)
	require.Equal(t, first, second)

	assert.Equal(t, 3, first.Total)
	assert.Equal(t, 2, first.Passed)
	assert.Equal(t, 1, first.Failed)
	assert.InDelta(t, 2.0/3.0, first.PassRate, 1e-9)
	assert.False(t, first.AllPassed())
	assert.Contains(t, first.FailureSummary(), "event_count.Tick")

	all := engine.Check(assertions[:1], tl)
	assert.True(t, all.AllPassed())
	assert.Empty(t, all.FailureSummary())
}
