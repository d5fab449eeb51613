package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

// recordingFile mirrors the on-disk JSON layout of a recorded session.
type recordingFile struct {
	SessionName string          `json:"session_name"`
	StartTime   string          `json:"start_time"`
	DurationMS  int64           `json:"duration_ms"`
	TotalEvents int             `json:"total_events"`
	Events      []RecordedEvent `json:"events"`
}

// Save writes the timeline to path as JSON, creating parent directories.
func Save(tl Timeline, path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create recording dir for %s", path)
		}
	}

	file := recordingFile{
		SessionName: tl.SessionName,
		StartTime:   tl.StartTime.UTC().Format(time.RFC3339Nano),
		DurationMS:  tl.DurationMS(),
		TotalEvents: len(tl.Events),
		Events:      tl.Events,
	}
	if file.Events == nil {
		file.Events = []RecordedEvent{}
	}

	data, err := sonic.ConfigFastest.MarshalIndent(file, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode recording %s", tl.SessionName)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write recording %s", path)
	}
	return nil
}

// Load reads a recording file back into a timeline. Corrupt files and
// out-of-order offsets are explicit errors naming the offending file.
func Load(path string) (Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Timeline{}, errors.Wrapf(err, "read recording %s", path)
	}

	var file recordingFile
	if err := sonic.ConfigFastest.Unmarshal(data, &file); err != nil {
		return Timeline{}, errors.Wrapf(err, "decode recording %s", path)
	}

	tl := Timeline{
		SessionName: file.SessionName,
		Events:      file.Events,
	}
	if file.StartTime != "" {
		start, err := time.Parse(time.RFC3339Nano, file.StartTime)
		if err != nil {
			return Timeline{}, errors.Wrapf(err, "parse start_time in %s", path)
		}
		tl.StartTime = start
	}

	var prev int64
	for i, e := range tl.Events {
		if e.OffsetMS < prev {
			return Timeline{}, fmt.Errorf("recording %s: event %d offset %dms precedes %dms", path, i, e.OffsetMS, prev)
		}
		prev = e.OffsetMS
	}
	return tl, nil
}
