package config

import (
	"time"
)

type Config struct {
	// DeviceID selects the capture device.
	DeviceID int

	// CapturePath is the root directory recordings are organized under.
	// Empty selects the per-OS default.
	CapturePath string

	// Detection tunables. These take effect on the next detection cycle
	// when the config file is reloaded.
	ThresholdLevel   float64
	DilateIterations int
	MinimumArea      float64

	RecordingLengthSec float64
	DetectionWaitSec   float64

	// AutoExposure toggles the device's automatic exposure adjustment,
	// which can create false positives.
	AutoExposure bool

	// CombineStills records events as annotated still sequences assembled
	// into video off the capture path, instead of encoding directly.
	CombineStills bool

	// Quiet hours for push notifications.
	NotificationHoursStart int
	NotificationHoursEnd   int

	// EventStoreDSN is the mysql DSN for the event store. Empty disables
	// persistence and push notifications.
	EventStoreDSN string

	// Port hosts the debug endpoints (metrics, event stream, push
	// subscription management).
	Port int
}

func Default() *Config {
	return &Config{
		DeviceID:               0,
		ThresholdLevel:         30,
		DilateIterations:       2,
		MinimumArea:            2500,
		RecordingLengthSec:     5,
		DetectionWaitSec:       1,
		AutoExposure:           true,
		NotificationHoursStart: 6,
		NotificationHoursEnd:   20,
		Port:                   8080,
	}
}

func (c *Config) RecordingLength() time.Duration {
	return time.Duration(c.RecordingLengthSec * float64(time.Second))
}

func (c *Config) DetectionWait() time.Duration {
	return time.Duration(c.DetectionWaitSec * float64(time.Second))
}
