package theme

import (
	"sync"
	"time"
)

// Variant is the discrete theme derived from the wall-clock hour.
type Variant string

const (
	Light Variant = "light" // morning, 06:00–11:59
	Mixed Variant = "mixed" // afternoon, 12:00–17:59
	Dark  Variant = "dark"  // evening and night
)

// Palette is the fixed token set per variant.
type Palette struct {
	Background  string `json:"background"`
	Surface     string `json:"surface"`
	TextPrimary string `json:"text_primary"`
	TextMuted   string `json:"text_muted"`
	Accent      string `json:"accent"`
	Bubble      string `json:"bubble"`
	BubbleOwn   string `json:"bubble_own"`
}

var palettes = map[Variant]Palette{
	Light: {
		Background:  "#f5f7fa",
		Surface:     "#ffffff",
		TextPrimary: "#1a1a2e",
		TextMuted:   "#6b7280",
		Accent:      "#4f8cff",
		Bubble:      "#e8edf4",
		BubbleOwn:   "#d6e6ff",
	},
	Mixed: {
		Background:  "#e9e4f0",
		Surface:     "#f7f3fb",
		TextPrimary: "#241b35",
		TextMuted:   "#7a6f8f",
		Accent:      "#8b5cf6",
		Bubble:      "#ded4ec",
		BubbleOwn:   "#cdbdea",
	},
	Dark: {
		Background:  "#12131a",
		Surface:     "#1c1e29",
		TextPrimary: "#e5e7eb",
		TextMuted:   "#9ca3af",
		Accent:      "#60a5fa",
		Bubble:      "#262a3a",
		BubbleOwn:   "#1e3a5f",
	},
}

// VariantFor maps an hour of day to a variant.
func VariantFor(hour int) Variant {
	switch {
	case hour >= 6 && hour < 12:
		return Light
	case hour >= 12 && hour < 18:
		return Mixed
	default:
		return Dark
	}
}

// PaletteFor returns the fixed palette for a variant.
func PaletteFor(v Variant) Palette { return palettes[v] }

// Engine recomputes the variant on an hourly tick. Read-only to consumers.
type Engine struct {
	mu       sync.RWMutex
	now      func() time.Time
	current  Variant
	onChange func(Variant)
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

type Option func(*Engine)

// WithClock substitutes the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithOnChange registers a callback fired when the variant changes.
func WithOnChange(fn func(Variant)) Option {
	return func(e *Engine) { e.onChange = fn }
}

// NewEngine computes the initial variant and starts the hourly refresh.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:  time.Now,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.current = VariantFor(e.now().Hour())
	e.ticker = time.NewTicker(time.Hour)
	go e.loop()
	return e
}

func (e *Engine) loop() {
	for {
		select {
		case <-e.ticker.C:
			e.refresh()
		case <-e.done:
			return
		}
	}
}

func (e *Engine) refresh() {
	next := VariantFor(e.now().Hour())
	e.mu.Lock()
	changed := next != e.current
	e.current = next
	fn := e.onChange
	e.mu.Unlock()
	if changed && fn != nil {
		fn(next)
	}
}

// Current returns the active variant.
func (e *Engine) Current() Variant {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// CurrentPalette returns the palette of the active variant.
func (e *Engine) CurrentPalette() Palette {
	return PaletteFor(e.Current())
}

// Stop cancels the hourly refresh. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.ticker.Stop()
		close(e.done)
	})
}
