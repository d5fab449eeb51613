package recorder

import (
	"testing"
	"time"

	"main/internal/schema"
)

type fakeNow struct {
	t time.Time
}

func (f *fakeNow) now() time.Time { return f.t }

func (f *fakeNow) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestRecorderOffsetsNonDecreasing(t *testing.T) {
	clock := &fakeNow{t: time.Unix(1700000000, 0).UTC()}
	r := NewRecorder().WithNow(clock.now)
	if err := r.Start("session"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	steps := []time.Duration{
		0,
		50 * time.Millisecond,
		100 * time.Millisecond,
		-30 * time.Millisecond, // wall clock stepping backwards
		200 * time.Millisecond,
	}
	for i, step := range steps {
		clock.advance(step)
		if err := r.Record("Tick", schema.Integer(i), "test"); err != nil {
			t.Fatalf("record %d failed: %v", i, err)
		}
	}

	tl := r.Stop()
	var prev int64
	for i, e := range tl.Events {
		if e.OffsetMS < prev {
			t.Fatalf("offset decreased at %d: %d < %d", i, e.OffsetMS, prev)
		}
		prev = e.OffsetMS
	}
}

func TestRecorderSnapshotIsolation(t *testing.T) {
	r := NewRecorder()
	if err := r.Start("session"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := r.Record("A", schema.Null(), "test"); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	snap := r.Snapshot()
	if err := r.Record("B", schema.Null(), "test"); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	if len(snap.Events) != 1 {
		t.Fatalf("snapshot grew after later append: %d events", len(snap.Events))
	}
	if r.EventCount() != 2 {
		t.Fatalf("live recorder has %d events, want 2", r.EventCount())
	}
}

func TestRecorderLifecycle(t *testing.T) {
	r := NewRecorder()
	if err := r.Record("A", schema.Null(), "test"); err != ErrNotRecording {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}
	if err := r.Start("s"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := r.Start("s"); err != ErrAlreadyRecording {
		t.Fatalf("expected ErrAlreadyRecording, got %v", err)
	}
	r.SetCycle(7)
	if err := r.Record("A", schema.Null(), "test"); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	tl := r.Stop()
	if tl.Events[0].Cycle != 7 {
		t.Fatalf("cycle not stamped: got %d want 7", tl.Events[0].Cycle)
	}
	if r.Active() {
		t.Fatal("recorder still active after stop")
	}
}

func TestTimelineCountsAndFilter(t *testing.T) {
	tl := Timeline{
		SessionName: "s",
		Events: []RecordedEvent{
			{Topic: "PriceTick"},
			{Topic: "PriceTick"},
			{Topic: "OrderPlaced"},
		},
	}
	counts := tl.Counts()
	if counts["PriceTick"] != 2 || counts["OrderPlaced"] != 1 {
		t.Fatalf("counts mismatch: %v", counts)
	}

	filtered := tl.Filter(func(topic string) bool { return topic == "PriceTick" })
	if len(filtered.Events) != 2 {
		t.Fatalf("filtered %d events, want 2", len(filtered.Events))
	}
	if len(tl.Events) != 3 {
		t.Fatal("filter mutated the original timeline")
	}
}
