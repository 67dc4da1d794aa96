package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"stop words dropped", "Set the zoom to a level", []string{"zoom", "level"}},
		{"duplicates collapse", "zoom ZOOM zoom", []string{"zoom"}},
		{"underscores split", "on_screen_keyboard", []string{"screen", "keyboard"}},
		{"punctuation trimmed", "cursor, size!", []string{"cursor", "size"}},
		{"empty", "   ", nil},
		{"only stop words", "enable the", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokens(tt.text)
			assert.Len(t, got, len(tt.want))
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
		})
	}
}

func TestTokens_Stems(t *testing.T) {
	assert.Equal(t, Tokens("animations"), Tokens("animation"))
	assert.Equal(t, Tokens("magnifier"), Tokens("magnifiers"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 0.0, Similarity(Tokens(""), Tokens("zoom")))
	assert.Equal(t, 0.0, Similarity(Tokens("zoom"), Tokens("")))
	assert.InDelta(t, 1.0, Similarity(Tokens("zoom level"), Tokens("level zoom")), 1e-9)
	assert.InDelta(t, 0.5, Similarity(Tokens("turn up the zoom level"), Tokens("zoom")), 1e-9)
	assert.Equal(t, 0.0, Similarity(Tokens("zoom"), Tokens("magnifier")))
}

func TestBestMatch(t *testing.T) {
	tests := []struct {
		name       string
		prompt     string
		candidates []string
		want       string
		found      bool
	}{
		{"zoom over magnifier", "turn up the zoom level", []string{"magnifier", "zoom"}, "zoom", true},
		{"word inside key", "make my cursor bigger", []string{"zoom", "cursor_size", "font_name"}, "cursor_size", true},
		{"no overlap", "xyzxyz", []string{"zoom", "magnifier"}, "", false},
		{"no candidates", "zoom", nil, "", false},
		{"tie keeps first", "size", []string{"font_size", "cursor_size"}, "font_size", true},
		{"stemmed overlap", "stop the animations", []string{"zoom", "enable_animation"}, "enable_animation", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BestMatch(tt.prompt, tt.candidates)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBestMatch_TieKeepsFirstSeparatedKey(t *testing.T) {
	// "cursor" scores 1/sqrt(2) against both keys once "_" and "-" split
	// words; a whole-key token would match neither.
	keys := []string{"cursor_size", "cursor-theme"}

	got, ok := BestMatch("bigger cursor please", keys)
	assert.True(t, ok)
	assert.Equal(t, "cursor_size", got)

	got, ok = BestMatch("bigger cursor please", []string{keys[1], keys[0]})
	assert.True(t, ok)
	assert.Equal(t, "cursor-theme", got)

	assert.InDelta(t,
		Similarity(Tokens("cursor"), Tokens("cursor_size")),
		Similarity(Tokens("cursor"), Tokens("cursor-theme")),
		1e-9)
}
