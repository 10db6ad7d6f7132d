package theme

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVariantFor_HourBoundaries(t *testing.T) {
	cases := []struct {
		hour int
		want Variant
	}{
		{0, Dark},
		{5, Dark},
		{6, Light},
		{11, Light},
		{12, Mixed},
		{17, Mixed},
		{18, Dark},
		{23, Dark},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, VariantFor(tc.hour), "hour %d", tc.hour)
	}
}

func TestPaletteFor_EveryVariantHasTokens(t *testing.T) {
	for _, v := range []Variant{Light, Mixed, Dark} {
		p := PaletteFor(v)
		require.NotEmpty(t, p.Background)
		require.NotEmpty(t, p.Surface)
		require.NotEmpty(t, p.TextPrimary)
		require.NotEmpty(t, p.Accent)
	}
}

func TestEngine_InitialVariantFromClock(t *testing.T) {
	morning := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	e := NewEngine(WithClock(func() time.Time { return morning }))
	defer e.Stop()

	require.Equal(t, Light, e.Current())
	require.Equal(t, PaletteFor(Light), e.CurrentPalette())
}

func TestEngine_RefreshFiresOnChange(t *testing.T) {
	now := time.Date(2026, 8, 29, 11, 30, 0, 0, time.UTC)
	var changed []Variant
	e := NewEngine(
		WithClock(func() time.Time { return now }),
		WithOnChange(func(v Variant) { changed = append(changed, v) }),
	)
	defer e.Stop()

	now = now.Add(time.Hour) // 12:30, afternoon
	e.refresh()
	require.Equal(t, Mixed, e.Current())
	require.Equal(t, []Variant{Mixed}, changed)

	// Same hour band: no callback.
	now = now.Add(30 * time.Minute)
	e.refresh()
	require.Equal(t, []Variant{Mixed}, changed)
}

func TestEngine_StopIsIdempotent(t *testing.T) {
	e := NewEngine()
	e.Stop()
	e.Stop()
}
