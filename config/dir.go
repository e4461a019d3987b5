package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// DefaultCaptureDir resolves and creates the per-OS default directory for
// recordings.
func DefaultCaptureDir() (string, error) {
	var path string
	switch runtime.GOOS {
	case "windows":
		path = filepath.Join(os.Getenv("APPDATA"), "Catnip")
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, "Library", "Application Support", "Catnip")
	default:
		path = filepath.Join("/var", "lib", "catnip")
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create capture directory %v: %w", path, err)
	}
	return path, nil
}
