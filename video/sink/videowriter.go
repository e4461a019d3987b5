package sink

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"catnip/video/source"
)

// FourCC used for event recordings. mp4v keeps the files playable in
// browsers without an external encoder.
const fourCC = "mp4v"

// VideoWriter writes frames directly to a video container via opencv's
// VideoWriter.
type VideoWriter struct {
	path   string
	writer *gocv.VideoWriter
	frames int
}

func NewVideoWriter(path string, width, height int, fps float64) (*VideoWriter, error) {
	w, err := gocv.VideoWriterFile(path, fourCC, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open video writer for %v: %w", path, err)
	}
	if !w.IsOpened() {
		w.Close()
		return nil, fmt.Errorf("video writer did not open for %v", path)
	}
	return &VideoWriter{
		path:   path,
		writer: w,
	}, nil
}

func (v *VideoWriter) Put(f source.Frame) error {
	if err := v.writer.Write(f.Mat); err != nil {
		return fmt.Errorf("failed to write frame to %v: %w", v.path, err)
	}
	v.frames++
	return nil
}

func (v *VideoWriter) Close() error {
	log.Debugf("Closing video %v after %d frames", v.path, v.frames)
	if err := v.writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize %v: %w", v.path, err)
	}
	return nil
}

func (v *VideoWriter) Path() string {
	return v.path
}
