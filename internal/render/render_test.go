package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sczr0/Next-Phi-Backend/internal/config"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatPNG, false},
		{"png", FormatPNG, false},
		{"jpeg", FormatJPEG, false},
		{"jpg", FormatJPEG, false},
		{"webp", FormatWebP, false},
		{"svg", FormatSVG, false},
		{"gif", "", true},
	}
	for _, tt := range tests {
		f, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
		} else {
			require.NoError(t, err, tt.in)
			assert.Equal(t, tt.want, f)
		}
	}
}

func TestFormatContentType(t *testing.T) {
	assert.Equal(t, "image/png", FormatPNG.ContentType())
	assert.Equal(t, "image/jpeg", FormatJPEG.ContentType())
	assert.Equal(t, "image/webp", FormatWebP.ContentType())
	assert.Equal(t, "image/svg+xml", FormatSVG.ContentType())
}

func TestSanitizeTemplateID(t *testing.T) {
	assert.Equal(t, "default", SanitizeTemplateID(""))
	assert.Equal(t, "compact-v2", SanitizeTemplateID("compact-v2"))
	assert.Equal(t, "default", SanitizeTemplateID("../etc/passwd"))
	assert.Equal(t, "default", SanitizeTemplateID("a b"))
}

func TestByteCacheLRU(t *testing.T) {
	c := NewByteCache(10, 0, 0)
	c.Put("a", []byte("aaaa"), "image/png")
	c.Put("b", []byte("bbbb"), "image/png")
	assert.Equal(t, 2, c.Len())

	// Rafraîchit a pour que b devienne le plus ancien
	_, _, ok := c.Get("a")
	require.True(t, ok)

	c.Put("c", []byte("cccc"), "image/png")
	assert.LessOrEqual(t, c.SizeBytes(), int64(10))

	_, _, ok = c.Get("b")
	assert.False(t, ok)
	_, _, ok = c.Get("a")
	assert.True(t, ok)
	_, _, ok = c.Get("c")
	assert.True(t, ok)
}

func TestByteCacheTTL(t *testing.T) {
	c := NewByteCache(1024, 20*time.Millisecond, 0)
	c.Put("k", []byte("data"), "image/png")

	_, _, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, _, ok = c.Get("k")
	assert.False(t, ok)
}

func TestByteCacheDisabledOrOversized(t *testing.T) {
	c := NewByteCache(0, 0, 0)
	c.Put("k", []byte("data"), "image/png")
	assert.Zero(t, c.Len())

	c = NewByteCache(2, 0, 0)
	c.Put("k", []byte("trop gros"), "image/png")
	assert.Zero(t, c.Len())
}

func TestByteCacheReplace(t *testing.T) {
	c := NewByteCache(1024, 0, 0)
	c.Put("k", []byte("v1"), "image/png")
	c.Put("k", []byte("v2-long"), "image/webp")

	data, ct, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2-long", string(data))
	assert.Equal(t, "image/webp", ct)
	assert.EqualValues(t, 7, c.SizeBytes())
}

func TestFingerprintDistinctness(t *testing.T) {
	base := Options{
		Kind: KindBN, TemplateID: "default", Format: FormatPNG, Width: 1200,
		N: 27, UserHash: "abc", SaveUpdatedAt: "2026-03-01T00:00:00Z",
	}
	key := fingerprint(base, false)

	// Empreinte stable sur options identiques
	assert.Equal(t, key, fingerprint(base, false))

	mutate := []func(o *Options){
		func(o *Options) { o.UserHash = "def" },
		func(o *Options) { o.SaveUpdatedAt = "2026-03-02T00:00:00Z" },
		func(o *Options) { o.N = 30 },
		func(o *Options) { o.Width = 800 },
		func(o *Options) { o.Format = FormatWebP },
		func(o *Options) { o.TemplateID = "compact" },
		func(o *Options) { o.SongID = "x" },
		func(o *Options) { o.EmbedImages = true },
	}
	for i, m := range mutate {
		o := base
		m(&o)
		assert.NotEqual(t, key, fingerprint(o, false), "mutation %d", i)
	}

	// Le filigrane participe à l'empreinte
	assert.NotEqual(t, key, fingerprint(base, true))
}

func TestWatermarkerUnlocked(t *testing.T) {
	w := NewWatermarker(config.WatermarkConfig{
		UnlockStatic:   "sesame",
		UnlockDynamic:  true,
		DynamicSecret:  "secret",
		DynamicSalt:    "salt",
		DynamicTTLSecs: 3600,
		DynamicLength:  8,
	})

	assert.False(t, w.Unlocked(""))
	assert.False(t, w.Unlocked("mauvais"))
	assert.True(t, w.Unlocked("sesame"))
	assert.True(t, w.Unlocked(w.DynamicCode()))
}

func TestDynamicCodeStableWithinWindow(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := NewWatermarker(config.WatermarkConfig{
		DynamicSecret: "secret", DynamicSalt: "salt", DynamicTTLSecs: 3600, DynamicLength: 8,
	})
	w.now = func() time.Time { return fixed }
	first := w.DynamicCode()
	assert.Len(t, first, 8)

	w.now = func() time.Time { return fixed.Add(30 * time.Minute) }
	assert.Equal(t, first, w.DynamicCode())

	w.now = func() time.Time { return fixed.Add(2 * time.Hour) }
	assert.NotEqual(t, first, w.DynamicCode())
}

func TestWatermarkFragment(t *testing.T) {
	w := NewWatermarker(config.WatermarkConfig{ExplicitBadge: true, ImplicitPixel: true})
	frag := w.Fragment(1200)
	assert.Contains(t, frag, "user reported")
	assert.Contains(t, frag, `fill="#010101"`)

	none := NewWatermarker(config.WatermarkConfig{})
	assert.Empty(t, none.Fragment(1200))
}
