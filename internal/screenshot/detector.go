package screenshot

import (
	"errors"
	"sync"
	"time"

	"github.com/chasmos/internal/logger"
)

// Capture is emitted to the caller-supplied callback on a successful
// capture. The caller is responsible for the upload.
type Capture struct {
	Image     []byte
	Width     int
	Height    int
	Timestamp time.Time
}

// Gate reports whether a capture attempt is currently allowed: the window
// is visible and focused, the chat view is the active route, and no
// overlay is open. All three must hold.
type Gate interface {
	CaptureAllowed() bool
}

// Clipboard reads image data from the system clipboard.
//
// ErrFocusTiming means the read was denied because of the focus handoff
// of an OS snip tool; a one-shot retry on focus-regained may succeed.
// ErrUnavailable means clipboard inspection is not possible at all.
type Clipboard interface {
	ReadImage() (data []byte, width, height int, err error)
}

var (
	ErrFocusTiming = errors.New("clipboard read denied: focus timing")
	ErrUnavailable = errors.New("clipboard unavailable")
)

// RegionCapturer rasterizes the visible message-list region, the fallback
// when the clipboard cannot be inspected.
type RegionCapturer interface {
	CaptureRegion() (data []byte, width, height int, err error)
}

type state int

const (
	stateIdle state = iota
	stateCapturing
)

// KeyEvent is a keydown as seen by the host shell.
type KeyEvent struct {
	Key   string
	Meta  bool
	Shift bool
	Ctrl  bool
}

// isScreenshotCombo recognizes the platform screenshot shortcuts.
func isScreenshotCombo(ev KeyEvent) bool {
	switch {
	case ev.Key == "PrintScreen":
		return true
	case ev.Meta && ev.Shift && (ev.Key == "3" || ev.Key == "4" || ev.Key == "5"):
		return true // macOS
	case ev.Meta && ev.Shift && ev.Key == "s":
		return true // Windows snip
	}
	return false
}

// Detector runs the capture state machine. Entry is idle-only and a 2s
// cooldown suppresses duplicate triggers from coincident key/paste events.
// Best-effort: every failure is logged and returns the machine to idle.
type Detector struct {
	mu          sync.Mutex
	gate        Gate
	clipboard   Clipboard
	region      RegionCapturer
	emit        func(Capture)
	now         func() time.Time
	cooldown    time.Duration
	state       state
	lastAttempt time.Time
	retryArmed  bool
}

type Option func(*Detector)

// WithClock substitutes the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithCooldown overrides the duplicate-trigger cooldown.
func WithCooldown(cd time.Duration) Option {
	return func(d *Detector) { d.cooldown = cd }
}

func NewDetector(gate Gate, clipboard Clipboard, region RegionCapturer, emit func(Capture), opts ...Option) *Detector {
	d := &Detector{
		gate:      gate,
		clipboard: clipboard,
		region:    region,
		emit:      emit,
		now:       time.Now,
		cooldown:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleKeyDown starts a capture when the keydown is a recognized
// screenshot shortcut.
func (d *Detector) HandleKeyDown(ev KeyEvent) {
	if !isScreenshotCombo(ev) {
		return
	}
	d.trigger()
}

// HandlePaste starts a capture when the clipboard payload of a paste
// event contains image data.
func (d *Detector) HandlePaste(hasImage bool) {
	if !hasImage {
		return
	}
	d.trigger()
}

// HandleFocusRegained fires the one-shot retry armed after a
// focus-timing clipboard denial.
func (d *Detector) HandleFocusRegained() {
	d.mu.Lock()
	armed := d.retryArmed
	d.retryArmed = false
	if armed {
		// The retry is a continuation of the armed attempt, not a new
		// trigger, so the cooldown does not apply.
		d.lastAttempt = time.Time{}
	}
	d.mu.Unlock()
	if armed {
		d.trigger()
	}
}

// TriggerRegionCapture captures the message-list region directly,
// bypassing the clipboard.
func (d *Detector) TriggerRegionCapture() {
	if !d.enter() {
		return
	}
	d.captureRegion()
}

// enter moves idle → capturing when the gate and cooldown allow it.
func (d *Detector) enter() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != stateIdle {
		return false
	}
	now := d.now()
	if !d.lastAttempt.IsZero() && now.Sub(d.lastAttempt) < d.cooldown {
		return false
	}
	if d.gate != nil && !d.gate.CaptureAllowed() {
		return false
	}
	d.state = stateCapturing
	d.lastAttempt = now
	return true
}

func (d *Detector) trigger() {
	if !d.enter() {
		return
	}
	if d.clipboard == nil {
		// No clipboard host: straight to the region fallback.
		d.captureRegion()
		return
	}
	data, w, h, err := d.clipboard.ReadImage()
	switch {
	case err == nil:
		d.finish(&Capture{Image: data, Width: w, Height: h, Timestamp: d.now()})
	case errors.Is(err, ErrFocusTiming):
		// One-shot retry when the window gets focus back.
		d.mu.Lock()
		d.retryArmed = true
		d.state = stateIdle
		d.mu.Unlock()
		logger.Debugf("screenshot: clipboard focus timing, retry on focus")
	case errors.Is(err, ErrUnavailable):
		d.captureRegion()
	default:
		logger.Debugf("screenshot: clipboard read: %v", err)
		d.finish(nil)
	}
}

func (d *Detector) captureRegion() {
	if d.region == nil {
		d.finish(nil)
		return
	}
	data, w, h, err := d.region.CaptureRegion()
	if err != nil {
		logger.Debugf("screenshot: region capture: %v", err)
		d.finish(nil)
		return
	}
	d.finish(&Capture{Image: data, Width: w, Height: h, Timestamp: d.now()})
}

// finish emits on success (uploaded) or discards, then returns to idle.
func (d *Detector) finish(c *Capture) {
	d.mu.Lock()
	d.state = stateIdle
	d.mu.Unlock()
	if c != nil && len(c.Image) > 0 && d.emit != nil {
		d.emit(*c)
	}
}
