package langdetect

import "testing"

func TestShortInputIsNotClassified(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "   ", "hello", "yes no", "!!! ???"} {
		if got := DetectISO6391(text); got != "" {
			t.Fatalf("DetectISO6391(%q) = %q, want empty", text, got)
		}
	}
}
