package auth

import (
	"strings"
	"testing"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Alice@Example.COM", "alice@example.com"},
		{"  a@b.com  ", "a@b.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeEmail(tt.in); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "alice@example.com", "a.b+c@sub.example.org"}
	for _, email := range valid {
		if !ValidEmail(email) {
			t.Errorf("expected %q to be valid", email)
		}
	}

	invalid := []string{"", "plain", "a@b", "a b@example.com", "a@b c.com", "@example.com"}
	for _, email := range invalid {
		if ValidEmail(email) {
			t.Errorf("expected %q to be invalid", email)
		}
	}
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice@example.com", "a***e@example.com"},
		{"ab@example.com", "a***b@example.com"},
		{"Alice@Example.COM", "a***e@example.com"},
		// Single-character local part: masking would reveal nothing, so the
		// address is returned as-is.
		{"a@example.com", "a@example.com"},
		{"no-at-sign", "no-at-sign"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		if got := MaskEmail(tt.in); got != tt.want {
			t.Errorf("MaskEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayLabel(t *testing.T) {
	withName := &User{Email: "alice@example.com", DisplayName: "Alice"}
	if got := DisplayLabel(withName); got != "Alice (a***e@example.com)" {
		t.Errorf("unexpected label %q", got)
	}

	without := &User{Email: "alice@example.com"}
	if got := DisplayLabel(without); got != "a***e@example.com" {
		t.Errorf("unexpected label %q", got)
	}
}

func TestTrimDisplayName(t *testing.T) {
	if got := trimDisplayName("  Alice  "); got != "Alice" {
		t.Errorf("expected trimmed name, got %q", got)
	}
	long := strings.Repeat("x", 50)
	if got := trimDisplayName(long); len(got) != maxDisplayNameLen {
		t.Errorf("expected name capped at %d, got %d", maxDisplayNameLen, len(got))
	}
	// Multibyte names are capped on rune boundaries, never mid-character.
	wide := strings.Repeat("ü", 50)
	if got := trimDisplayName(wide); got != strings.Repeat("ü", maxDisplayNameLen) {
		t.Errorf("expected rune-capped name, got %q", got)
	}
	if got := trimDisplayName(""); got != "" {
		t.Errorf("expected empty name to stay empty, got %q", got)
	}
}

func TestProfileFor(t *testing.T) {
	p := ProfileFor(&User{Email: "alice@example.com", DisplayName: "Alice"})
	if p.EmailMasked != "a***e@example.com" {
		t.Errorf("unexpected masked email %q", p.EmailMasked)
	}
	if p.DisplayLabel != "Alice (a***e@example.com)" {
		t.Errorf("unexpected display label %q", p.DisplayLabel)
	}
}
