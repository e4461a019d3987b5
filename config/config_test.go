package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	c := Default()
	if c.RecordingLength() != 5*time.Second {
		t.Errorf("RecordingLength = %v, want 5s", c.RecordingLength())
	}
	if c.DetectionWait() != time.Second {
		t.Errorf("DetectionWait = %v, want 1s", c.DetectionWait())
	}
	if c.ThresholdLevel != 30 || c.DilateIterations != 2 || c.MinimumArea != 2500 {
		t.Errorf("Unexpected detection defaults: %+v", c)
	}
	if !c.AutoExposure {
		t.Error("AutoExposure disabled by default")
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"DeviceID": 2, "MinimumArea": 1000, "RecordingLengthSec": 7.5}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := Load(ctx, path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	c := Get()
	if c.DeviceID != 2 {
		t.Errorf("DeviceID = %d, want 2", c.DeviceID)
	}
	if c.MinimumArea != 1000 {
		t.Errorf("MinimumArea = %v, want 1000", c.MinimumArea)
	}
	if c.RecordingLength() != 7500*time.Millisecond {
		t.Errorf("RecordingLength = %v, want 7.5s", c.RecordingLength())
	}
	// Unspecified fields keep their defaults.
	if c.ThresholdLevel != 30 {
		t.Errorf("ThresholdLevel = %v, want default 30", c.ThresholdLevel)
	}
	if c.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", c.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := Load(ctx, filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("Load succeeded on a missing file")
	}
}
