package sink

import (
	"catnip/video/source"
)

// Sink is a destination for recorded frames, such as a video file.
type Sink interface {
	// Put appends a frame to the sink. The sink must not retain references
	// to the frame's underlying matrix.
	Put(f source.Frame) error

	// Close flushes and finalizes the sink. The output is not valid until
	// Close returns. Close must be called exactly once.
	Close() error
}
