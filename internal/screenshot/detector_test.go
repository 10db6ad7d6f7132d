package screenshot

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeGate struct{ allowed bool }

func (g *fakeGate) CaptureAllowed() bool { return g.allowed }

type fakeClipboard struct {
	data  []byte
	w, h  int
	err   error
	calls int
}

func (c *fakeClipboard) ReadImage() ([]byte, int, int, error) {
	c.calls++
	if c.err != nil {
		return nil, 0, 0, c.err
	}
	return c.data, c.w, c.h, nil
}

type fakeRegion struct {
	data  []byte
	err   error
	calls int
}

func (r *fakeRegion) CaptureRegion() ([]byte, int, int, error) {
	r.calls++
	if r.err != nil {
		return nil, 0, 0, r.err
	}
	return r.data, 800, 600, nil
}

type fixture struct {
	detector *Detector
	gate     *fakeGate
	clip     *fakeClipboard
	region   *fakeRegion
	captures []Capture
	now      time.Time
}

func newFixture() *fixture {
	f := &fixture{
		gate:   &fakeGate{allowed: true},
		clip:   &fakeClipboard{data: []byte("png"), w: 1920, h: 1080},
		region: &fakeRegion{data: []byte("region")},
		now:    time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
	}
	f.detector = NewDetector(f.gate, f.clip, f.region,
		func(c Capture) { f.captures = append(f.captures, c) },
		WithClock(func() time.Time { return f.now }),
	)
	return f
}

func printScreen() KeyEvent { return KeyEvent{Key: "PrintScreen"} }

func TestKeyDown_PrintScreenEmitsCapture(t *testing.T) {
	f := newFixture()
	f.detector.HandleKeyDown(printScreen())

	require.Len(t, f.captures, 1)
	require.Equal(t, []byte("png"), f.captures[0].Image)
	require.Equal(t, 1920, f.captures[0].Width)
	require.Equal(t, f.now, f.captures[0].Timestamp)
}

func TestKeyDown_CooldownSuppressesSecondTrigger(t *testing.T) {
	f := newFixture()
	f.detector.HandleKeyDown(printScreen())
	f.now = f.now.Add(500 * time.Millisecond)
	f.detector.HandleKeyDown(printScreen())

	require.Len(t, f.captures, 1)

	f.now = f.now.Add(2 * time.Second)
	f.detector.HandleKeyDown(printScreen())
	require.Len(t, f.captures, 2)
}

func TestKeyDown_UnrecognizedComboIgnored(t *testing.T) {
	f := newFixture()
	f.detector.HandleKeyDown(KeyEvent{Key: "a"})
	f.detector.HandleKeyDown(KeyEvent{Key: "3"}) // no modifiers

	require.Empty(t, f.captures)
	require.Zero(t, f.clip.calls)
}

func TestKeyDown_MacCombosRecognized(t *testing.T) {
	f := newFixture()
	f.detector.HandleKeyDown(KeyEvent{Key: "4", Meta: true, Shift: true})

	require.Len(t, f.captures, 1)
}

func TestGate_BlocksCapture(t *testing.T) {
	f := newFixture()
	f.gate.allowed = false
	f.detector.HandleKeyDown(printScreen())

	require.Empty(t, f.captures)
	require.Zero(t, f.clip.calls)
}

func TestPaste_OnlyImagePayloadTriggers(t *testing.T) {
	f := newFixture()
	f.detector.HandlePaste(false)
	require.Empty(t, f.captures)

	f.detector.HandlePaste(true)
	require.Len(t, f.captures, 1)
}

func TestClipboard_FocusTimingArmsOneShotRetry(t *testing.T) {
	f := newFixture()
	f.clip.err = ErrFocusTiming
	f.detector.HandleKeyDown(printScreen())
	require.Empty(t, f.captures)

	f.clip.err = nil
	f.detector.HandleFocusRegained()
	require.Len(t, f.captures, 1)

	// The retry is one-shot.
	f.detector.HandleFocusRegained()
	require.Len(t, f.captures, 1)
}

func TestClipboard_UnavailableFallsBackToRegion(t *testing.T) {
	f := newFixture()
	f.clip.err = ErrUnavailable
	f.detector.HandleKeyDown(printScreen())

	require.Len(t, f.captures, 1)
	require.Equal(t, []byte("region"), f.captures[0].Image)
	require.Equal(t, 1, f.region.calls)
}

func TestClipboard_NilHostFallsBackToRegion(t *testing.T) {
	f := newFixture()
	f.detector = NewDetector(f.gate, nil, f.region,
		func(c Capture) { f.captures = append(f.captures, c) },
		WithClock(func() time.Time { return f.now }),
	)
	f.detector.HandleKeyDown(printScreen())

	require.Len(t, f.captures, 1)
	require.Equal(t, []byte("region"), f.captures[0].Image)
	require.Equal(t, 1, f.region.calls)
}

func TestClipboard_OtherErrorDiscardsAndReturnsToIdle(t *testing.T) {
	f := newFixture()
	f.clip.err = errors.New("boom")
	f.detector.HandleKeyDown(printScreen())
	require.Empty(t, f.captures)

	// Machine is back in idle and accepts the next attempt after cooldown.
	f.clip.err = nil
	f.now = f.now.Add(3 * time.Second)
	f.detector.HandleKeyDown(printScreen())
	require.Len(t, f.captures, 1)
}

func TestRegionCapture_Direct(t *testing.T) {
	f := newFixture()
	f.detector.TriggerRegionCapture()

	require.Len(t, f.captures, 1)
	require.Equal(t, []byte("region"), f.captures[0].Image)
	require.Zero(t, f.clip.calls)
}
