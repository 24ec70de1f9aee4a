package sanitize

import "testing"

func TestString(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		maxLen int
		want   string
	}{
		{"trims whitespace", "  Ana  ", 255, "Ana"},
		{"drops nulls", "An\x00a", 255, "Ana"},
		{"truncates", "abcdef", 3, "abc"},
		{"coerces non-string", 42, 255, "42"},
		{"zero maxLen means no truncation", "abcdef", 0, "abcdef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := String(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("String(%v, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestCompetitorName(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"preserves diacritics", "Andrei Ștefănescu", "Andrei Ștefănescu"},
		{"strips angle brackets", "<script>Bob</script>", "scriptBob/script"},
		{"strips shell metacharacters", "Bob; rm -rf $HOME`x`", "Bob rm -rf HOMEx"},
		{"strips control chars", "Bob\x01\x7f", "Bob"},
		{"empty after scrub", "<<<>>>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CompetitorName(tt.in); got != tt.want {
				t.Errorf("CompetitorName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCategory(t *testing.T) {
	long := make([]byte, 150)
	for i := range long {
		long[i] = 'x'
	}
	got := Category(string(long))
	if len(got) != 100 {
		t.Errorf("Category truncated to %d runes, want 100", len(got))
	}
}
