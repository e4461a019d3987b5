package video

import (
	"time"
)

// Recording describes a finalized, playable video file for a motion event.
type Recording struct {
	Identifier  string
	Path        string
	Frames      int
	DurationSec int
	Start       time.Time
	End         time.Time
}

// Listener receives motion event transitions. Methods are invoked from
// the detection loop (or the combine worker for RecordingReady);
// implementations should not block. An empty listener set is a no-op.
type Listener interface {
	// EventStarted fires once when a new motion event begins recording.
	EventStarted(e *Event)

	// EventEnded fires once when the event's sink has been flushed and
	// closed.
	EventEnded(e *Event)

	// RecordingReady fires once the event's video file is final and
	// playable. For still-sequence recordings this happens after the
	// combine pass, off the capture path.
	RecordingReady(r *Recording)
}
