package sink

import (
	"fmt"
	"path/filepath"

	"catnip/video/source"
)

// StillTimeLayout is the timestamp overlay drawn on each recorded still.
const StillTimeLayout = "02 January 2006 at 15:04:05"

// StillSequence writes each frame as a numbered, timestamp-annotated still
// image in a directory. The sequence is combined into a video off the
// capture path once the event ends.
type StillSequence struct {
	dir   string
	index int
}

func NewStillSequence(dir string) *StillSequence {
	return &StillSequence{
		dir: dir,
	}
}

func (s *StillSequence) Put(f source.Frame) error {
	path := filepath.Join(s.dir, fmt.Sprintf("%d.png", s.index))
	if err := f.WriteAnnotated(path, []string{f.Time.Format(StillTimeLayout)}); err != nil {
		return err
	}
	s.index++
	return nil
}

// Close is a no-op; each still is already durable on disk.
func (s *StillSequence) Close() error {
	return nil
}

func (s *StillSequence) Dir() string {
	return s.dir
}

func (s *StillSequence) Count() int {
	return s.index
}
