package video

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"catnip/video/sink"
	"catnip/video/source"
)

// RecordingName is the video file written inside each event directory.
const RecordingName = "event.mp4"

// eventTimeLayout names event directories by start time within a day.
const eventTimeLayout = "150405"

// Event is one bounded motion episode, from first detection until the
// scene has settled for the configured recording length.
//
// The detection loop is the sole creator and destroyer of events, and the
// only goroutine that touches the trigger frame. The capture loop feeds
// frames concurrently through AddFrame.
type Event struct {
	// ID uniquely identifies the event; it doubles as the directory name.
	ID string

	// Start is when motion was first detected.
	Start time.Time

	dir string

	// trigger is the motion frame future frames are compared against to
	// decide whether motion is still occurring. Detection loop only.
	trigger source.Frame
	updated time.Time

	mu     sync.Mutex
	sink   sink.Sink
	frames int
	closed bool
	end    time.Time
}

// eventDir creates the capture directory for an event starting at start:
// root/year/month/day/HHMMSS. A same-second collision gets a random
// suffix rather than retrying indefinitely.
func eventDir(root string, start time.Time) (string, error) {
	day := filepath.Join(root,
		strconv.Itoa(start.Year()),
		strconv.Itoa(int(start.Month())),
		strconv.Itoa(start.Day()))
	if err := os.MkdirAll(day, 0755); err != nil {
		return "", fmt.Errorf("failed to create capture directory: %w", err)
	}

	dir := filepath.Join(day, start.Format(eventTimeLayout))
	err := os.Mkdir(dir, 0755)
	if err == nil {
		return dir, nil
	}
	if !os.IsExist(err) {
		return "", fmt.Errorf("failed to create event directory: %w", err)
	}

	dir = fmt.Sprintf("%s_%s", dir, uuid.NewString()[:8])
	if err := os.Mkdir(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create event directory: %w", err)
	}
	return dir, nil
}

// newEvent takes ownership of the trigger frame.
func newEvent(dir string, trigger source.Frame, s sink.Sink) *Event {
	start := trigger.Time
	if start.IsZero() {
		start = time.Now()
	}
	return &Event{
		ID:      filepath.Base(dir),
		Start:   start,
		dir:     dir,
		trigger: trigger,
		updated: time.Now(),
		sink:    s,
	}
}

// Dir is the directory holding the event's captures.
func (e *Event) Dir() string {
	return e.dir
}

// VideoPath is where the event's finalized video lives.
func (e *Event) VideoPath() string {
	return filepath.Join(e.dir, RecordingName)
}

// DueForReevaluation reports whether enough wall-clock time has passed
// since the last trigger update for the event to be re-examined.
func (e *Event) DueForReevaluation(every time.Duration) bool {
	return time.Since(e.updated) >= every
}

// Similar reports whether the given motion frame is similar to the
// event's trigger frame.
func (e *Event) Similar(f source.Frame, p source.DiffParams) bool {
	return e.trigger.IsSimilar(f, p)
}

// UpdateTrigger replaces the trigger frame, taking ownership of f, and
// re-arms the recording-length timer.
func (e *Event) UpdateTrigger(f source.Frame) {
	e.trigger.Close()
	e.trigger = f
	e.updated = time.Now()
}

// AddFrame appends a frame to the event's recording sink. Appending to an
// already-closed event is a no-op; the capture loop may race with the
// detection loop ending the event.
func (e *Event) AddFrame(f source.Frame) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	if err := e.sink.Put(f); err != nil {
		return err
	}
	e.frames++
	return nil
}

// Close flushes and releases the recording sink and the trigger frame.
// Close is idempotent.
func (e *Event) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.end = time.Now()
	e.trigger.Close()
	return e.sink.Close()
}

// Frames is the number of frames fed to the sink so far.
func (e *Event) Frames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// End is when the event was closed; zero while still active.
func (e *Event) End() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.end
}
