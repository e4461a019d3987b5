package video

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"catnip/video/sink"
	"catnip/video/source"
)

const (
	sceneBlank = iota
	sceneSquare
	sceneGrowing
)

// fakeCamera produces synthetic 640x480 frames. The scene can be switched
// while the capture loop runs.
type fakeCamera struct {
	width, height int

	mu      sync.Mutex
	scene   int
	sceneAt time.Time
	noFrame bool
	closes  int
}

func newFakeCamera() *fakeCamera {
	return &fakeCamera{
		width:   640,
		height:  480,
		sceneAt: time.Now(),
	}
}

func (c *fakeCamera) SetScene(scene int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scene = scene
	c.sceneAt = time.Now()
}

func drawSquare(mat *gocv.Mat, side int) {
	cx, cy := 320, 240
	r := image.Rect(cx-side/2, cy-side/2, cx+side/2, cy+side/2)
	gocv.Rectangle(mat, r, color.RGBA{R: 255, G: 255, B: 255}, -1)
}

func (c *fakeCamera) Capture() (source.Frame, error) {
	c.mu.Lock()
	scene := c.scene
	elapsed := time.Since(c.sceneAt)
	noFrame := c.noFrame
	c.mu.Unlock()

	if noFrame {
		return source.Frame{}, fmt.Errorf("%w: fake device", source.ErrNoFrame)
	}

	// Approximate a device-native capture rate.
	time.Sleep(5 * time.Millisecond)

	mat := gocv.NewMatWithSize(c.height, c.width, gocv.MatTypeCV8UC3)
	switch scene {
	case sceneSquare:
		drawSquare(&mat, 320)
	case sceneGrowing:
		side := 320 + int(elapsed.Milliseconds())/4
		if side > 460 {
			side = 460
		}
		drawSquare(&mat, side)
	}
	return source.Frame{Mat: mat, Time: time.Now()}, nil
}

func (c *fakeCamera) IsOpened() bool       { return true }
func (c *fakeCamera) Width() int           { return c.width }
func (c *fakeCamera) Height() int          { return c.height }
func (c *fakeCamera) FPS() float64         { return 20 }
func (c *fakeCamera) SetAutoExposure(bool) {}

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeCamera) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// memorySink counts frames instead of writing them anywhere.
type memorySink struct {
	mu     sync.Mutex
	frames int
	closes int
}

func (s *memorySink) Put(f source.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *memorySink) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type sinkRecorder struct {
	mu    sync.Mutex
	sinks []*memorySink
	fail  bool
}

func (r *sinkRecorder) factory(dir string) (sink.Sink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errors.New("sink unavailable")
	}
	s := &memorySink{}
	r.sinks = append(r.sinks, s)
	return s, nil
}

func (r *sinkRecorder) SetFail(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fail
}

func (r *sinkRecorder) Sinks() []*memorySink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*memorySink{}, r.sinks...)
}

// countListener counts transitions.
type countListener struct {
	mu         sync.Mutex
	starts     int
	ends       int
	recordings int
}

func (l *countListener) EventStarted(e *Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starts++
}

func (l *countListener) EventEnded(e *Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ends++
}

func (l *countListener) RecordingReady(r *Recording) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordings++
}

func (l *countListener) Starts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.starts
}

func (l *countListener) Ends() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ends
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func testOptions(t *testing.T, rec *sinkRecorder) *Options {
	t.Helper()
	return &Options{
		CaptureRoot:     t.TempDir(),
		RecordingLength: 150 * time.Millisecond,
		DetectionWait:   25 * time.Millisecond,
		Params: source.DiffParams{
			ThresholdLevel:   30,
			ThresholdMax:     255,
			DilateIterations: 2,
			MinContourArea:   800,
		},
		SinkFactory: rec.factory,
	}
}

func TestEventLifecycle(t *testing.T) {
	cam := newFakeCamera()
	rec := &sinkRecorder{}
	m := NewManager(cam, testOptions(t, rec))
	lis := &countListener{}
	m.Listeners = append(m.Listeners, lis)

	done := make(chan error, 1)
	go func() { done <- m.Run() }()

	// A static scene must stay Idle.
	time.Sleep(300 * time.Millisecond)
	if got := lis.Starts(); got != 0 {
		t.Fatalf("Started %d events on a static scene, want 0", got)
	}

	// Motion appears: exactly one event starts.
	cam.SetScene(sceneSquare)
	waitFor(t, 3*time.Second, func() bool { return lis.Starts() == 1 },
		"Timeout waiting for event start")

	// The square stops changing; once due for re-evaluation the event
	// must end exactly once.
	waitFor(t, 3*time.Second, func() bool { return lis.Ends() == 1 },
		"Timeout waiting for event end")
	if got := lis.Starts(); got != 1 {
		t.Fatalf("Started %d events, want 1", got)
	}

	// The background model was refreshed from the final motion frame, so
	// the now-static square must not retrigger.
	time.Sleep(400 * time.Millisecond)
	if got := lis.Starts(); got != 1 {
		t.Fatalf("Started %d events after background refresh, want 1", got)
	}

	// Removing the square is change against the refreshed background.
	cam.SetScene(sceneBlank)
	waitFor(t, 3*time.Second, func() bool { return lis.Starts() == 2 },
		"Timeout waiting for second event start")

	m.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for Run to return")
	}

	if got := cam.Closes(); got != 1 {
		t.Fatalf("Camera released %d times, want 1", got)
	}
	for i, s := range rec.Sinks() {
		if got := s.Closes(); got != 1 {
			t.Fatalf("Sink %d closed %d times, want 1", i, got)
		}
	}
}

func TestContinuousMotionKeepsEventActive(t *testing.T) {
	cam := newFakeCamera()
	rec := &sinkRecorder{}
	m := NewManager(cam, testOptions(t, rec))
	lis := &countListener{}
	m.Listeners = append(m.Listeners, lis)

	done := make(chan error, 1)
	go func() { done <- m.Run() }()

	cam.SetScene(sceneGrowing)
	waitFor(t, 3*time.Second, func() bool { return lis.Starts() == 1 },
		"Timeout waiting for event start")

	// Spans several re-evaluation boundaries; the growing square keeps
	// re-arming the trigger.
	time.Sleep(500 * time.Millisecond)
	if got := lis.Ends(); got != 0 {
		t.Fatalf("Event ended %d times during continuous motion, want 0", got)
	}
	if got := lis.Starts(); got != 1 {
		t.Fatalf("Started %d events, want exactly 1 concurrent event", got)
	}

	// Growth saturates; the scene settles and the event must close.
	waitFor(t, 5*time.Second, func() bool { return lis.Ends() == 1 },
		"Timeout waiting for event end after motion stopped")

	m.Stop()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for Run to return")
	}
}

func TestSinkFailureKeepsIdle(t *testing.T) {
	cam := newFakeCamera()
	rec := &sinkRecorder{}
	rec.SetFail(true)
	m := NewManager(cam, testOptions(t, rec))
	lis := &countListener{}
	m.Listeners = append(m.Listeners, lis)

	done := make(chan error, 1)
	go func() { done <- m.Run() }()

	cam.SetScene(sceneSquare)
	time.Sleep(400 * time.Millisecond)
	if got := lis.Starts(); got != 0 {
		t.Fatalf("Started %d events with a failing sink, want 0", got)
	}

	// Once the sink recovers the pending motion starts an event.
	rec.SetFail(false)
	waitFor(t, 3*time.Second, func() bool { return lis.Starts() == 1 },
		"Timeout waiting for event start after sink recovery")

	m.Stop()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for Run to return")
	}
}

func TestShutdownClosesActiveEvent(t *testing.T) {
	cam := newFakeCamera()
	rec := &sinkRecorder{}
	m := NewManager(cam, testOptions(t, rec))
	lis := &countListener{}
	m.Listeners = append(m.Listeners, lis)

	done := make(chan error, 1)
	go func() { done <- m.Run() }()

	cam.SetScene(sceneGrowing)
	waitFor(t, 3*time.Second, func() bool { return lis.Starts() == 1 },
		"Timeout waiting for event start")

	m.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for Run to return")
	}

	if got := lis.Ends(); got != 1 {
		t.Fatalf("Event ended %d times at shutdown, want 1", got)
	}
	sinks := rec.Sinks()
	if len(sinks) != 1 {
		t.Fatalf("Opened %d sinks, want 1", len(sinks))
	}
	if got := sinks[0].Closes(); got != 1 {
		t.Fatalf("Sink closed %d times at shutdown, want 1", got)
	}
	if got := cam.Closes(); got != 1 {
		t.Fatalf("Camera released %d times, want 1", got)
	}
}

func TestRepeatedCaptureFailureStopsManager(t *testing.T) {
	cam := newFakeCamera()
	cam.noFrame = true
	rec := &sinkRecorder{}
	opts := testOptions(t, rec)
	opts.MaxCaptureFailures = 3
	m := NewManager(cam, opts)

	done := make(chan error, 1)
	go func() { done <- m.Run() }()

	select {
	case err := <-done:
		if !errors.Is(err, source.ErrNoFrame) {
			t.Fatalf("Run returned %v, want ErrNoFrame", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for Run to fail")
	}
	if got := cam.Closes(); got != 1 {
		t.Fatalf("Camera released %d times, want 1", got)
	}
}

func TestSleepNeverNegative(t *testing.T) {
	m := NewManager(newFakeCamera(), &Options{CaptureRoot: t.TempDir()})

	// A cycle slower than the cadence must not sleep at all.
	start := time.Now()
	m.sleep(-5 * time.Second)
	m.sleep(0)
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("Non-positive sleep took %v", elapsed)
	}

	// Stop interrupts a pending sleep within one cadence period.
	go func() {
		time.Sleep(20 * time.Millisecond)
		m.Stop()
	}()
	start = time.Now()
	m.sleep(10 * time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Sleep ignored stop for %v", elapsed)
	}
}
