package recorder

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"main/internal/bus"
	"main/internal/schema"
)

// recordingClock collects sleeps instead of blocking.
type recordingClock struct {
	mu     sync.Mutex
	slept  []time.Duration
	onWake func()
}

func (c *recordingClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	c.slept = append(c.slept, d)
	c.mu.Unlock()
	if c.onWake != nil {
		c.onWake()
	}
	return nil
}

func (c *recordingClock) total() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sum time.Duration
	for _, d := range c.slept {
		sum += d
	}
	return sum
}

type captureBus struct {
	mu     sync.Mutex
	events []bus.Event
}

func (b *captureBus) Publish(topic string, payload schema.Value, source string) error {
	b.mu.Lock()
	b.events = append(b.events, bus.Event{Topic: topic, Payload: payload, Source: source})
	b.mu.Unlock()
	return nil
}

func timelineWithOffsets(offsets ...int64) Timeline {
	tl := Timeline{SessionName: "test_session"}
	for i, off := range offsets {
		tl.Events = append(tl.Events, RecordedEvent{
			OffsetMS: off,
			Topic:    fmt.Sprintf("Event%d", i),
			Payload:  schema.Integer(i),
			Source:   "test",
		})
	}
	return tl
}

func TestReplayPreservesScaledGaps(t *testing.T) {
	tl := timelineWithOffsets(0, 100, 250)
	clock := &recordingClock{}
	target := &captureBus{}

	result, err := NewReplayer().WithClock(clock).Replay(context.Background(), tl, target, ReplayOptions{Speed: 10})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if result.Replayed != 3 || result.Skipped != 0 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	// Gaps 100ms and 150ms at 10x speed total 25ms of simulated waiting.
	if got, want := clock.total(), 25*time.Millisecond; got != want {
		t.Fatalf("total wait %v, want %v", got, want)
	}

	for i, e := range target.events {
		if e.Topic != fmt.Sprintf("Event%d", i) {
			t.Fatalf("event %d out of order: %s", i, e.Topic)
		}
		if e.Source != "Replayer[test_session]" {
			t.Fatalf("unexpected source: %s", e.Source)
		}
	}
}

func TestReplayFilterSkips(t *testing.T) {
	tl := timelineWithOffsets(0, 10, 20)
	target := &captureBus{}
	var progress []int

	result, err := NewReplayer().WithClock(&recordingClock{}).Replay(context.Background(), tl, target, ReplayOptions{
		Speed:  0,
		Filter: func(topic string) bool { return topic != "Event1" },
		OnProgress: func(done, total int) {
			progress = append(progress, done)
		},
	})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if result.Replayed != 2 || result.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(progress) != 3 || progress[2] != 3 {
		t.Fatalf("progress callback missed positions: %v", progress)
	}
}

func TestReplayPublishFailureDoesNotAbort(t *testing.T) {
	tl := timelineWithOffsets(0, 10)
	failing := bus.PublisherFunc(func(topic string, _ schema.Value, _ string) error {
		if topic == "Event0" {
			return fmt.Errorf("transport down")
		}
		return nil
	})

	result, err := NewReplayer().WithClock(&recordingClock{}).Replay(context.Background(), tl, failing, ReplayOptions{Speed: 0})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if result.Failed != 1 || result.Replayed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestReplayStopTerminates(t *testing.T) {
	tl := timelineWithOffsets(0, 1000, 2000)
	target := &captureBus{}
	replayer := NewReplayer()

	clock := &recordingClock{}
	clock.onWake = func() { replayer.Stop() }
	replayer.WithClock(clock)

	result, err := replayer.Replay(context.Background(), tl, target, ReplayOptions{Speed: 1})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !result.Stopped {
		t.Fatal("expected stopped result")
	}
	if result.Replayed >= 3 {
		t.Fatalf("stop replayed everything: %+v", result)
	}
}

func TestReplayPauseExcludesElapsedTime(t *testing.T) {
	tl := timelineWithOffsets(0, 200)
	target := &captureBus{}
	replayer := NewReplayer()

	var pausedOnce bool
	clock := &recordingClock{}
	clock.onWake = func() {
		if !pausedOnce {
			pausedOnce = true
			replayer.Pause()
			if !replayer.Paused() {
				t.Error("pause did not take effect")
			}
			replayer.Resume()
		}
	}
	replayer.WithClock(clock)

	result, err := replayer.Replay(context.Background(), tl, target, ReplayOptions{Speed: 1})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if result.Replayed != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
}
