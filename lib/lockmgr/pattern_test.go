package lockmgr

import (
	"testing"
)

func TestTranslatePattern(t *testing.T) {
	tests := []struct {
		pattern  string
		expected string
	}{
		{"jobs/*", `jobs\/*`},
		{"a?c", "a?c"},
		{"{a,b}", `\{a\,b\}`},
		{`x\y`, `x\\y`},
		{"[", `\[`},
		{"[a]", "a"},
		{"[ab]", "[ab]"},
		{"[!ab]", "[!ab]"},
		{"[a-z]", "[a-z]"},
		{"[!0-9]", "[!0-9]"},
		{"[a-cx]", `{[a-c],x}`},
		{"[-a]", `[a\-]`},
		{"[!-]", "[!---]"},
		{"[]a]", `[\]a]`},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			expr, err := translatePattern(tt.pattern)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if expr != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, expr)
			}
		})
	}
}

func TestCompilePatternLiteralFallback(t *testing.T) {
	tests := []struct {
		pattern string
		matches []string
		misses  []string
	}{
		{"[!a-cx]", []string{"[!a-cx]"}, []string{"d", "a"}},
		{"[z-a]", []string{"[z-a]"}, []string{"z", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			if _, err := translatePattern(tt.pattern); err == nil {
				t.Fatalf("Expected %q to be untranslatable", tt.pattern)
			}
			match := compilePattern(tt.pattern)
			for _, id := range tt.matches {
				if !match(id) {
					t.Errorf("Expected %q to match %q", tt.pattern, id)
				}
			}
			for _, id := range tt.misses {
				if match(id) {
					t.Errorf("Expected %q not to match %q", tt.pattern, id)
				}
			}
		})
	}
}

func TestCompilePatternMatches(t *testing.T) {
	match := compilePattern("lock[0-9]/*")
	for _, id := range []string{"lock1/a", "lock9/b/c"} {
		if !match(id) {
			t.Errorf("Expected %q to match", id)
		}
	}
	for _, id := range []string{"lockx/a", "lock10/a", "lock1"} {
		if match(id) {
			t.Errorf("Expected %q not to match", id)
		}
	}
}
