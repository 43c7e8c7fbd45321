package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfsleuth/perfsleuth/internal/types"
)

func finding(description, reference string) *types.Finding {
	return &types.Finding{
		Description: description,
		Evidence:    types.Evidence{Reference: reference},
	}
}

func TestClassify(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	tests := []struct {
		name        string
		description string
		reference   string
		want        types.SemanticType
	}{
		{
			name:        "unsized image",
			description: "Hero image is missing explicit width/height attributes",
			want:        types.TypeImageSizing,
		},
		{
			name:        "oversized image",
			description: "Oversized image served to mobile viewport",
			reference:   "hero.jpg",
			want:        types.TypeImageSizing,
		},
		{
			name:        "unused javascript",
			description: "312KB of unused JavaScript shipped in the main bundle",
			reference:   "app.js",
			want:        types.TypeUnusedCode,
		},
		{
			name:        "render blocking",
			description: "Render-blocking stylesheet delays first paint",
			reference:   "styles.css",
			want:        types.TypeBlockingResource,
		},
		{
			name:        "server latency",
			description: "TTFB of 1.8s indicates slow origin response",
			want:        types.TypeServerLatency,
		},
		{
			name:        "layout shift",
			description: "Banner injection causes layout shift below the fold",
			want:        types.TypeLayoutShift,
		},
		{
			name:        "font loading",
			description: "Web font loads without font-display fallback",
			want:        types.TypeFontLoading,
		},
		{
			name:        "caching",
			description: "Static assets served with cache-control max-age=0",
			want:        types.TypeCaching,
		},
		{
			name:        "compression",
			description: "Text responses are uncompressed; enable brotli",
			want:        types.TypeCompression,
		},
		{
			name:        "third party",
			description: "Tag manager executes 400ms of script on the main thread",
			want:        types.TypeThirdParty,
		},
		{
			name:        "render delay",
			description: "Long task blocks the main thread during hydration",
			want:        types.TypeRenderDelay,
		},
		{
			name:        "case insensitive",
			description: "UNUSED JAVASCRIPT in vendor chunk",
			want:        types.TypeUnusedCode,
		},
		{
			name:        "keyword in reference only",
			description: "Large payload on initial load",
			reference:   "render-blocking audit for main.css",
			want:        types.TypeBlockingResource,
		},
		{
			name:        "no match",
			description: "Something entirely unrelated happened",
			want:        types.TypeUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(finding(tt.description, tt.reference))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_OrderMatters(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	// Mentions both unused code and blocking; the earlier rule wins.
	f := finding("Unused JavaScript in a render-blocking script", "vendor.js")
	assert.Equal(t, types.TypeUnusedCode, c.Classify(f))
}

func TestClassify_Deterministic(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	f := finding("312KB of unused JavaScript", "app.js")
	first := c.Classify(f)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify(f))
	}
}

func TestNewFromYAML_RejectsBadRules(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no keywords", "rules:\n  - type: caching\n"},
		{"unknown type", "rules:\n  - type: unknown\n    any_of: [x]\n"},
		{"empty type", "rules:\n  - any_of: [x]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newFromYAML([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
