package utils

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exactly at limit", "hello", 5, "hello"},
		{"ascii truncation", "hello world", 5, "hello"},
		{"zero limit", "hello", 0, ""},
		{"negative limit", "hello", -1, ""},
		{"multibyte kept whole", "héllo", 2, "hé"},
		{"cjk truncation", "日本語テキスト", 3, "日本語"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateRunes(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestTruncateRunesNeverSplitsCharacters(t *testing.T) {
	// A byte slice at these lengths would cut the é or 語 in half.
	s := "résumé 日本語"
	for n := 0; n <= len(s); n++ {
		assert.True(t, utf8.ValidString(TruncateRunes(s, n)), "n=%d", n)
	}
}
