package source

import (
	"errors"
)

var (
	// ErrDeviceUnavailable indicates the capture device could not be opened.
	// This is fatal at startup; detection must not proceed without a device.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrNoFrame indicates a single capture call returned no frame. The
	// device itself may still be healthy; callers decide whether to retry.
	ErrNoFrame = errors.New("no frame received from capture device")
)

// Camera defines a source of frames, such as a webcam. Implementations wrap
// the physical capture device; the pipeline only ever talks to this
// interface.
type Camera interface {
	// Capture reads the current frame from the device. The caller owns the
	// returned frame and must Close it. Errors wrap ErrNoFrame when the
	// device produced nothing this call.
	Capture() (Frame, error)

	IsOpened() bool

	// Width and Height report the native capture resolution in pixels.
	Width() int
	Height() int

	// FPS reports the native capture rate.
	FPS() float64

	// SetAutoExposure enables or disables the device's automatic exposure
	// adjustment. Automatic adjustment can create false positives.
	SetAutoExposure(enable bool)

	// Close releases the device. The camera must not be used afterwards.
	Close() error
}
