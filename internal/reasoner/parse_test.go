package reasoner

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare object",
			in:   `{"a": 1}`,
			want: `{"a": 1}`,
		},
		{
			name: "json code fence",
			in:   "```json\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "plain code fence",
			in:   "```\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "surrounding prose",
			in:   "Here is my answer:\n{\"a\": 1}\nHope that helps!",
			want: `{"a": 1}`,
		},
		{
			name: "no braces",
			in:   "no json here",
			want: "no json here",
		},
		{
			name: "nested braces",
			in:   `prefix {"outer": {"inner": 2}} suffix`,
			want: `{"outer": {"inner": 2}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSONBlock(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly10!", truncate("exactly10!", 10))
	assert.Equal(t, "this is...", truncate("this is a long string", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestTruncateMultibyte(t *testing.T) {
	assert.Equal(t, "héllo...", truncate("héllo wörld, ça va", 8))
	assert.Equal(t, "コン...", truncate("コンテナが再起動しています", 5))
	assert.Equal(t, "日本語", truncate("日本語", 10))
	for _, got := range []string{
		truncate("héllo wörld, ça va", 8),
		truncate("コンテナが再起動しています", 5),
	} {
		assert.True(t, utf8.ValidString(got), "truncate produced invalid UTF-8: %q", got)
	}
}
