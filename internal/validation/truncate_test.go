package validation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		value string
		limit int
		want  string
	}{
		"short":          {value: "agent", limit: 10, want: "agent"},
		"exact":          {value: "agent", limit: 5, want: "agent"},
		"ascii cut":      {value: "agent/1.0", limit: 5, want: "agent"},
		"rune boundary":  {value: "aé", limit: 2, want: "a"},
		"invalid bytes":  {value: "a\xffb", limit: 10, want: "ab"},
		"zero limit":     {value: "agent", limit: 0, want: ""},
		"multibyte fits": {value: "日本", limit: 6, want: "日本"},
		"multibyte cut":  {value: "日本", limit: 5, want: "日"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Truncate(tc.value, tc.limit))
		})
	}
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	t.Parallel()

	got := Truncate("a"+strings.Repeat("é", 300), 500)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 499, len(got))
}
