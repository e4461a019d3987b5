package video

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/pillash/mp4util"
	log "github.com/sirupsen/logrus"

	"catnip/metrics"
	"catnip/util"
	"catnip/video/process"
	"catnip/video/sink"
	"catnip/video/source"
)

// Options configures a Manager.
type Options struct {
	// CaptureRoot is the directory event recordings are organized under,
	// sub-pathed by year/month/day.
	CaptureRoot string

	// RecordingLength is how long the scene must stay similar to the
	// trigger frame before an event closes. Continuous motion re-arms it.
	RecordingLength time.Duration

	// DetectionWait is the target wall-clock interval between detection
	// cycles. A slow cycle is followed immediately by the next one.
	DetectionWait time.Duration

	// DownscaleDivisor bounds per-frame detection cost independent of the
	// sensor resolution. Frames are reduced to width/DownscaleDivisor
	// before comparison.
	DownscaleDivisor int

	// Params are the comparison tunables used when Tunables is nil.
	Params source.DiffParams

	// Tunables, when set, is consulted every detection cycle so comparison
	// parameters can be adjusted at runtime (config hot reload).
	Tunables func() source.DiffParams

	// CombineStills selects still-sequence recording with off-path video
	// assembly instead of writing video directly.
	CombineStills bool

	// SinkFactory overrides recording sink creation. Used by tests.
	SinkFactory func(dir string) (sink.Sink, error)

	// MaxCaptureFailures is how many consecutive empty captures are
	// tolerated before the manager stops with an error.
	MaxCaptureFailures int
}

func (o *Options) setDefaults() {
	if o.RecordingLength == 0 {
		o.RecordingLength = 5 * time.Second
	}
	if o.DetectionWait == 0 {
		o.DetectionWait = time.Second
	}
	if o.DownscaleDivisor == 0 {
		o.DownscaleDivisor = 4
	}
	if o.Params == (source.DiffParams{}) {
		o.Params = source.DefaultDiffParams()
	}
	if o.MaxCaptureFailures == 0 {
		o.MaxCaptureFailures = 30
	}
}

// Manager owns the capture and detection loops and all state shared
// between them: the latest captured frame, the background model, the
// active motion event and the stop signal.
type Manager struct {
	// Listeners receive event transitions. Set before Run.
	Listeners []Listener

	opts   *Options
	camera source.Camera

	stop *util.Event

	// frameMu guards latest. The capture loop is the only writer, the
	// detection loop the only reader; both copy under the lock and release
	// it before doing any pipeline work.
	frameMu    sync.Mutex
	latest     source.Frame
	hasFrame   bool
	firstFrame *util.Event

	background Background

	// eventMu guards the active event reference. Written by the detection
	// loop only; read by the capture loop, which must tolerate the event
	// disappearing between check and use.
	eventMu sync.RWMutex
	event   *Event

	combinec chan *Event

	errMu  sync.Mutex
	runErr error
}

func NewManager(camera source.Camera, opts *Options) *Manager {
	o := *opts
	o.setDefaults()
	return &Manager{
		opts:       &o,
		camera:     camera,
		stop:       util.NewEvent(),
		firstFrame: util.NewEvent(),
		combinec:   make(chan *Event, 16),
	}
}

// Run starts the capture, detection and combine loops and blocks until
// the manager stops, either through Stop, a termination signal or a
// capture failure. The camera is released before Run returns.
func (m *Manager) Run() error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case sig := <-sigs:
			log.Warnf("Received signal %v, shutting down...", sig)
			m.stop.Notify()
		case <-m.stop.Done():
		}
	}()

	var wg sync.WaitGroup
	for _, loop := range []func(){m.capture, m.detect, m.combine} {
		wg.Add(1)
		go func(f func()) {
			defer wg.Done()
			f()
		}(loop)
	}
	log.Info("Started the manager.")
	wg.Wait()

	m.shutdown()

	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.runErr
}

// Stop requests shutdown. Safe to call from any goroutine, any number of
// times.
func (m *Manager) Stop() {
	m.stop.Notify()
}

func (m *Manager) fail(err error) {
	m.errMu.Lock()
	if m.runErr == nil {
		m.runErr = err
	}
	m.errMu.Unlock()
	m.stop.Notify()
}

// capture is the producer loop: it pulls frames at device rate, publishes
// the latest frame, seeds the background model when absent, and feeds an
// active event.
func (m *Manager) capture() {
	failures := 0
	for !m.stop.HasBeenNotified() {
		frame, err := m.camera.Capture()
		if err != nil {
			metrics.CaptureFailures.Inc()
			if errors.Is(err, source.ErrNoFrame) {
				failures++
				log.Errorf("Capture failed (%d consecutive): %v", failures, err)
				if failures < m.opts.MaxCaptureFailures {
					continue
				}
			}
			m.fail(err)
			return
		}
		failures = 0
		metrics.FramesCaptured.Inc()

		m.publish(frame)

		if !m.background.Ready() {
			m.background.Set(m.reduce(frame))
			log.Debug("Seeded the background model.")
			frame.Close()
			continue
		}

		if ev := m.activeEvent(); ev != nil {
			if err := ev.AddFrame(frame); err != nil {
				metrics.SinkFailures.Inc()
				log.Errorf("Failed to record frame: %v", err)
			}
		}
		frame.Close()
	}
}

// detect is the consumer loop: on a fixed cadence it snapshots the latest
// frame, runs the comparison chain against the background model and
// drives the event state machine.
func (m *Manager) detect() {
	// Wait for the first captured frame without spinning.
	select {
	case <-m.firstFrame.Done():
	case <-m.stop.Done():
		return
	}

	for !m.stop.HasBeenNotified() {
		start := time.Now()
		if m.background.Ready() {
			m.cycle()
		}
		elapsed := time.Since(start)
		metrics.DetectCycleDuration.Observe(elapsed.Seconds())
		// A cycle slower than the cadence is followed immediately by the
		// next one; the cadence is a lower bound, not an upper bound.
		m.sleep(m.opts.DetectionWait - elapsed)
	}
}

// cycle runs one detection pass. Evaluated strictly in this order: an
// active event that isn't due yet is left alone; a due event either
// re-arms on continued motion or closes; otherwise surviving contours
// open a new event.
func (m *Manager) cycle() {
	frame := m.snapshotLatest()
	defer frame.Close()

	motion := m.reduce(frame)

	bg := m.background.Snapshot()
	contours := motion.Contours(bg, m.params())
	bg.Close()

	ev := m.activeEvent()
	switch {
	case ev != nil:
		if !ev.DueForReevaluation(m.opts.RecordingLength) {
			motion.Close()
			return
		}
		if !ev.Similar(motion, m.params()) {
			// Motion is still changing; keep recording.
			ev.UpdateTrigger(motion)
			return
		}
		m.finish(ev, motion)
	case len(contours) > 0:
		m.begin(motion, len(contours))
	default:
		motion.Close()
	}
}

// begin opens a recording sink and transitions to Active. Takes ownership
// of the motion frame; if the sink cannot be opened the event is not
// created and the state stays Idle.
func (m *Manager) begin(motion source.Frame, contours int) {
	dir, err := eventDir(m.opts.CaptureRoot, motion.Time)
	if err != nil {
		log.Errorf("Failed to create event directory: %v", err)
		motion.Close()
		return
	}

	s, err := m.newSink(dir)
	if err != nil {
		metrics.SinkFailures.Inc()
		log.Errorf("Failed to open recording sink: %v", err)
		motion.Close()
		return
	}

	ev := newEvent(dir, motion, s)
	m.setEvent(ev)
	metrics.EventsStarted.Inc()
	log.Infof("Started recording a motion event (%d contours) to %v", contours, dir)
	for _, l := range m.Listeners {
		l.EventStarted(ev)
	}
}

// finish closes the active event and refreshes the background model from
// the final motion frame, taking ownership of it.
func (m *Manager) finish(ev *Event, motion source.Frame) {
	m.setEvent(nil)
	if err := ev.Close(); err != nil {
		metrics.SinkFailures.Inc()
		log.Errorf("Failed to close recording sink: %v", err)
	}
	m.background.Set(motion)
	log.Debug("Updated the background model.")

	metrics.EventsEnded.Inc()
	log.Infof("Finished recording motion event %v (%d frames)", ev.ID, ev.Frames())
	for _, l := range m.Listeners {
		l.EventEnded(ev)
	}

	if m.opts.CombineStills {
		select {
		case m.combinec <- ev:
		default:
			log.Errorf("Combine queue full, dropping event %v", ev.ID)
		}
	} else {
		m.finalize(ev)
	}
}

// combine assembles still-sequence recordings into videos off the capture
// path.
func (m *Manager) combine() {
	for {
		select {
		case <-m.stop.Done():
			// Drain what's queued so finished events stay playable.
			for {
				select {
				case ev := <-m.combinec:
					m.runCombine(ev)
				default:
					return
				}
			}
		case ev := <-m.combinec:
			m.runCombine(ev)
		}
	}
}

func (m *Manager) runCombine(ev *Event) {
	count, err := process.CombineStills(ev.Dir(), ev.VideoPath(), m.camera.FPS())
	if err != nil {
		log.Errorf("Failed to combine stills for event %v: %v", ev.ID, err)
		return
	}
	log.Infof("Combined %d stills into %v", count, ev.VideoPath())
	m.finalize(ev)
}

// finalize announces a playable recording to listeners.
func (m *Manager) finalize(ev *Event) {
	r := &Recording{
		Identifier: ev.ID,
		Path:       ev.VideoPath(),
		Frames:     ev.Frames(),
		Start:      ev.Start,
		End:        ev.End(),
	}
	if sec, err := mp4util.Duration(r.Path); err != nil {
		log.Warnf("Could not read duration of %v: %v", r.Path, err)
	} else {
		r.DurationSec = sec
	}
	for _, l := range m.Listeners {
		l.RecordingReady(r)
	}
}

// shutdown runs after both loops have drained: any still-active event is
// flushed so its recording is playable rather than abandoned mid-write,
// then the camera is released.
func (m *Manager) shutdown() {
	if ev := m.activeEvent(); ev != nil {
		m.setEvent(nil)
		if err := ev.Close(); err != nil {
			log.Errorf("Failed to close recording sink: %v", err)
		}
		metrics.EventsEnded.Inc()
		log.Infof("Closed active motion event %v at shutdown", ev.ID)
		for _, l := range m.Listeners {
			l.EventEnded(ev)
		}
		if m.opts.CombineStills {
			m.runCombine(ev)
		} else {
			m.finalize(ev)
		}
	}

	if m.hasFrame {
		m.latest.Close()
	}

	if err := m.camera.Close(); err != nil {
		log.Errorf("Failed to release the camera: %v", err)
	}
	log.Debug("Shut down gracefully.")
}

// reduce runs the downscale, grayscale and blur steps shared by detection
// and background seeding.
func (m *Manager) reduce(f source.Frame) source.Frame {
	resized := f.Resize(f.Width() / m.opts.DownscaleDivisor)
	defer resized.Close()
	gray := resized.Gray()
	defer gray.Close()
	return gray.Blur()
}

func (m *Manager) params() source.DiffParams {
	if m.opts.Tunables != nil {
		return m.opts.Tunables()
	}
	return m.opts.Params
}

func (m *Manager) newSink(dir string) (sink.Sink, error) {
	if m.opts.SinkFactory != nil {
		return m.opts.SinkFactory(dir)
	}
	if m.opts.CombineStills {
		return sink.NewStillSequence(dir), nil
	}
	return sink.NewVideoWriter(filepath.Join(dir, RecordingName),
		m.camera.Width(), m.camera.Height(), m.camera.FPS())
}

// publish stores a copy of the frame in the latest-frame slot.
func (m *Manager) publish(f source.Frame) {
	m.frameMu.Lock()
	if m.hasFrame {
		m.latest.Close()
	}
	m.latest = f.Clone()
	m.hasFrame = true
	m.frameMu.Unlock()
	m.firstFrame.Notify()
}

// snapshotLatest copies the latest frame out under the lock, releasing it
// before any pipeline work happens.
func (m *Manager) snapshotLatest() source.Frame {
	m.frameMu.Lock()
	defer m.frameMu.Unlock()
	return m.latest.Clone()
}

func (m *Manager) activeEvent() *Event {
	m.eventMu.RLock()
	defer m.eventMu.RUnlock()
	return m.event
}

func (m *Manager) setEvent(ev *Event) {
	m.eventMu.Lock()
	m.event = ev
	m.eventMu.Unlock()
}

// sleep waits for the remainder of the detection cadence, returning early
// on stop. Non-positive durations return immediately.
func (m *Manager) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-m.stop.Done():
	}
}
