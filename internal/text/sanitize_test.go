package text_test

import (
	"testing"

	"github.com/wanderlog/wanderbot/internal/text"
)

func TestSanitize(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text untouched",
			input: "Day 1: Louvre at 09:00",
			want:  "Day 1: Louvre at 09:00",
		},
		{
			name:  "windows line endings",
			input: "line one\r\nline two\rline three",
			want:  "line one\nline two\nline three",
		},
		{
			name:  "runs of spaces collapse per line",
			input: "too   many\t spaces\nsecond    line",
			want:  "too many spaces\nsecond line",
		},
		{
			name:  "excess blank lines collapse",
			input: "para one\n\n\n\n\npara two",
			want:  "para one\n\npara two",
		},
		{
			name:  "control characters stripped",
			input: "be\x00fore\x07after",
			want:  "be fore after",
		},
		{
			name:  "invisible unicode removed",
			input: "caf\u00ADe\u200B here\u00A0now",
			want:  "cafe here now",
		},
		{
			name:  "unicode line separators become newlines",
			input: "first\u2028second",
			want:  "first\nsecond",
		},
		{
			name:  "leading and trailing whitespace trimmed",
			input: "  \n  hello  \n\n  ",
			want:  "hello",
		},
		{
			name:  "nothing printable",
			input: " \u200B\x00\n ",
			want:  "",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := text.Sanitize(tc.input); got != tc.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
