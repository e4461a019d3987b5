package video

import (
	"sync"

	"catnip/video/source"
)

// Background holds the reference frame representing the motionless scene.
// It is replaced wholesale, never blended pixel-by-pixel. Writers: the
// capture loop when no model exists yet, and the detection loop when a
// motion event ends.
type Background struct {
	mu    sync.RWMutex
	frame source.Frame
	ready bool
}

// Ready reports whether a reference frame exists. Detection must not run
// before it does.
func (b *Background) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready
}

// Set replaces the reference frame, taking ownership of f. The previous
// frame is released.
func (b *Background) Set(f source.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready {
		b.frame.Close()
	}
	b.frame = f
	b.ready = true
}

// Snapshot returns a copy of the reference frame. The caller owns the copy
// and must Close it. Snapshot panics if no model exists; callers check
// Ready first.
func (b *Background) Snapshot() source.Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.ready {
		panic("background model not seeded")
	}
	return b.frame.Clone()
}
