package recorder

import (
	"time"

	"main/internal/schema"
)

// RecordedEvent is one intercepted publish call. Immutable once appended.
type RecordedEvent struct {
	OffsetMS int64        `json:"timestamp_offset_ms"`
	Topic    string       `json:"event_name"`
	Payload  schema.Value `json:"event_data"`
	Source   string       `json:"source"`
	Cycle    int          `json:"cycle"`
}

// Timeline is the ordered record of bus events for one session.
// Offsets are non-decreasing; the slice is append-only while recording
// and treated as immutable once handed out.
type Timeline struct {
	SessionName string
	StartTime   time.Time
	Events      []RecordedEvent
}

// DurationMS returns the offset of the last event, or 0 when empty.
func (tl Timeline) DurationMS() int64 {
	if len(tl.Events) == 0 {
		return 0
	}
	return tl.Events[len(tl.Events)-1].OffsetMS
}

// Counts returns the number of recorded events per topic.
func (tl Timeline) Counts() map[string]int {
	counts := make(map[string]int, len(tl.Events))
	for _, e := range tl.Events {
		counts[e.Topic]++
	}
	return counts
}

// Filter derives a new timeline keeping only events whose topic the
// keep function accepts. The original timeline is not modified.
func (tl Timeline) Filter(keep func(topic string) bool) Timeline {
	filtered := Timeline{
		SessionName: tl.SessionName + "_filtered",
		StartTime:   tl.StartTime,
	}
	for _, e := range tl.Events {
		if keep(e.Topic) {
			filtered.Events = append(filtered.Events, e)
		}
	}
	return filtered
}

// Equal reports whether two timelines hold the same session name and
// the same ordered events.
func (tl Timeline) Equal(other Timeline) bool {
	if tl.SessionName != other.SessionName || len(tl.Events) != len(other.Events) {
		return false
	}
	for i, e := range tl.Events {
		o := other.Events[i]
		if e.OffsetMS != o.OffsetMS || e.Topic != o.Topic || e.Source != o.Source || e.Cycle != o.Cycle {
			return false
		}
		if !e.Payload.Equal(o.Payload) {
			return false
		}
	}
	return true
}
