package recorder

import (
	"errors"
	"sync"
	"time"

	"main/internal/schema"
)

var (
	ErrNotRecording     = errors.New("recorder not started")
	ErrAlreadyRecording = errors.New("recorder already started")
)

// Recorder appends bus events to a live timeline. Record is safe for
// concurrent use; Snapshot hands out copies so assertion checks never
// race with an active recording.
type Recorder struct {
	mu      sync.Mutex
	active  bool
	session string
	start   time.Time
	cycle   int
	events  []RecordedEvent
	counts  map[string]int

	now func() time.Time
}

// NewRecorder creates an idle recorder.
func NewRecorder() *Recorder {
	return &Recorder{now: func() time.Time { return time.Now().UTC() }}
}

// WithNow swaps the clock source. Test hook.
func (r *Recorder) WithNow(now func() time.Time) *Recorder {
	if now != nil {
		r.now = now
	}
	return r
}

// Start resets state and records the session start timestamp.
func (r *Recorder) Start(sessionName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return ErrAlreadyRecording
	}
	r.active = true
	r.session = sessionName
	r.start = r.now()
	r.cycle = 0
	r.events = nil
	r.counts = make(map[string]int)
	return nil
}

// SetCycle updates the logical cycle stamped onto subsequent events.
// Single writer: only the component driving the run advances cycles.
func (r *Recorder) SetCycle(cycle int) {
	r.mu.Lock()
	r.cycle = cycle
	r.mu.Unlock()
}

// Record appends an event with its offset from the session start.
// Offsets are clamped so they never decrease, even if the wall clock
// steps backwards.
func (r *Recorder) Record(topic string, payload schema.Value, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return ErrNotRecording
	}
	offset := r.now().Sub(r.start).Milliseconds()
	if offset < 0 {
		offset = 0
	}
	if n := len(r.events); n > 0 && offset < r.events[n-1].OffsetMS {
		offset = r.events[n-1].OffsetMS
	}
	r.events = append(r.events, RecordedEvent{
		OffsetMS: offset,
		Topic:    topic,
		Payload:  payload,
		Source:   source,
		Cycle:    r.cycle,
	})
	r.counts[topic]++
	return nil
}

// Active reports whether a session is being recorded.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// EventCount returns the number of events recorded so far.
func (r *Recorder) EventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// TopicCount returns how many events were recorded for one topic.
func (r *Recorder) TopicCount(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[topic]
}

// Counts returns a copy of the per-topic counters.
func (r *Recorder) Counts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int, len(r.counts))
	for topic, n := range r.counts {
		counts[topic] = n
	}
	return counts
}

// Snapshot returns a point-in-time copy of the live timeline. The copy
// shares payload values, which are never mutated after append.
func (r *Recorder) Snapshot() Timeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Stop finalizes the session and returns the completed timeline.
func (r *Recorder) Stop() Timeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
	return r.snapshotLocked()
}

func (r *Recorder) snapshotLocked() Timeline {
	events := make([]RecordedEvent, len(r.events))
	copy(events, r.events)
	return Timeline{
		SessionName: r.session,
		StartTime:   r.start,
		Events:      events,
	}
}
