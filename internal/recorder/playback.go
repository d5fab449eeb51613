package recorder

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"main/internal/bus"

	"github.com/yanun0323/logs"
)

// sliceDuration bounds each sleep so pause/stop signals take effect
// within one slice rather than only between events.
const sliceDuration = 100 * time.Millisecond

// Clock allows deterministic playback control.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock returns the wall-clock implementation of Clock.
func SystemClock() Clock { return realClock{} }

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ReplayOptions controls a single replay run.
type ReplayOptions struct {
	// Speed scales the recorded gaps: 1 is real-time, 10 is ten times
	// faster. 0 disables pacing entirely.
	Speed float64
	// Filter skips events whose topic it rejects. Nil replays all.
	Filter func(topic string) bool
	// OnProgress is invoked after each event position, replayed or not.
	OnProgress func(done, total int)
}

// ReplayResult summarizes a finished or stopped replay run.
type ReplayResult struct {
	Replayed int
	Skipped  int
	Failed   int
	Stopped  bool
}

const (
	replayIdle uint32 = iota
	replayRunning
	replayPaused
	replayStopped
)

// Replayer republishes a recorded timeline onto a bus, preserving the
// relative gaps between events scaled by 1/speed. One Replayer drives
// one run at a time; stop is terminal for the current run.
type Replayer struct {
	clock Clock
	slice time.Duration
	state uint32
}

// NewReplayer creates a replayer with the real clock.
func NewReplayer() *Replayer {
	return &Replayer{clock: realClock{}, slice: sliceDuration}
}

// WithClock swaps the clock implementation. Test hook.
func (p *Replayer) WithClock(clock Clock) *Replayer {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Pause freezes progression. Time spent paused is excluded from the
// next wait calculation.
func (p *Replayer) Pause() {
	atomic.CompareAndSwapUint32(&p.state, replayRunning, replayPaused)
}

// Resume continues a paused replay. Undefined after Stop.
func (p *Replayer) Resume() {
	atomic.CompareAndSwapUint32(&p.state, replayPaused, replayRunning)
}

// Stop terminates the replay at the current index. Remaining events are
// not replayed; the run cannot be resumed.
func (p *Replayer) Stop() {
	atomic.StoreUint32(&p.state, replayStopped)
}

// Paused reports whether the replay is currently paused.
func (p *Replayer) Paused() bool {
	return atomic.LoadUint32(&p.state) == replayPaused
}

// Replay republishes every timeline event onto pub. An individual
// publish failure is logged and counted but does not abort the run.
func (p *Replayer) Replay(ctx context.Context, tl Timeline, pub bus.Publisher, opts ReplayOptions) (ReplayResult, error) {
	if pub == nil {
		return ReplayResult{}, fmt.Errorf("replay target bus is nil")
	}
	if opts.Speed < 0 {
		return ReplayResult{}, fmt.Errorf("replay speed must be >= 0, got %g", opts.Speed)
	}
	atomic.StoreUint32(&p.state, replayRunning)

	source := fmt.Sprintf("Replayer[%s]", tl.SessionName)
	total := len(tl.Events)
	var result ReplayResult
	var prevOffset int64

	for i, event := range tl.Events {
		gap := event.OffsetMS - prevOffset
		if i == 0 {
			gap = 0
		}
		prevOffset = event.OffsetMS

		if err := p.wait(ctx, scaleGap(gap, opts.Speed)); err != nil {
			if err == errReplayStopped {
				result.Stopped = true
				return result, nil
			}
			return result, err
		}

		if opts.Filter != nil && !opts.Filter(event.Topic) {
			result.Skipped++
		} else if err := pub.Publish(event.Topic, event.Payload, source); err != nil {
			logs.Warnf("replay publish %s failed: %+v", event.Topic, err)
			result.Failed++
		} else {
			result.Replayed++
		}

		if opts.OnProgress != nil {
			opts.OnProgress(i+1, total)
		}
	}
	atomic.StoreUint32(&p.state, replayIdle)
	return result, nil
}

var errReplayStopped = fmt.Errorf("replay stopped")

// wait sleeps for d in slices, honoring pause and stop between slices.
// Paused time never counts towards d.
func (p *Replayer) wait(ctx context.Context, d time.Duration) error {
	remaining := d
	for {
		switch atomic.LoadUint32(&p.state) {
		case replayStopped:
			return errReplayStopped
		case replayPaused:
			if err := p.clock.Sleep(ctx, p.slice); err != nil {
				return err
			}
			continue
		}
		if remaining <= 0 {
			return nil
		}
		step := remaining
		if step > p.slice {
			step = p.slice
		}
		if err := p.clock.Sleep(ctx, step); err != nil {
			return err
		}
		remaining -= step
	}
}

func scaleGap(gapMS int64, speed float64) time.Duration {
	if gapMS <= 0 || speed <= 0 {
		return 0
	}
	return time.Duration(float64(gapMS) / speed * float64(time.Millisecond))
}
