package crawler

import (
	"errors"
	"net/url"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		keep  bool
		want  string
	}{
		{"strips fragment", "https://example.com/p#a", false, "https://example.com/p"},
		{"strips from first hash", "https://example.com/p#a#b", false, "https://example.com/p"},
		{"no fragment", "https://example.com/p?q=1", false, "https://example.com/p?q=1"},
		{"keeps fragment", "https://example.com/p#a", true, "https://example.com/p#a"},
		{"empty fragment", "https://example.com/p#", false, "https://example.com/p"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Normalize(tt.input, tt.keep)
			if got != tt.want {
				t.Errorf("Normalize(%q, %v) = %q, want %q", tt.input, tt.keep, got, tt.want)
			}
			if again := Normalize(got, tt.keep); again != got {
				t.Errorf("Normalize is not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestIsExternal(t *testing.T) {
	t.Parallel()

	origin, err := url.Parse("http://h:80")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		candidate string
		want      bool
	}{
		{"http://h:81/x", true},
		{"http://h:80/y", false},
		{"http://h/y", false},
		{"http://H/y", false},
		{"http://other/y", true},
		{"https://h/secure", false},
		{"https://h:8443/secure", true},
	}

	for _, tt := range tests {
		t.Run(tt.candidate, func(t *testing.T) {
			t.Parallel()
			u, err := url.Parse(tt.candidate)
			if err != nil {
				t.Fatal(err)
			}
			if got := IsExternal(u, origin); got != tt.want {
				t.Errorf("IsExternal(%q, %q) = %v, want %v", tt.candidate, origin, got, tt.want)
			}
		})
	}
}

func TestValidateSeed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"http", "http://example.com", nil},
		{"https with path", " https://example.com/start ", nil},
		{"ftp", "ftp://example.com", ErrInvalidScheme},
		{"file", "file:///etc/passwd", ErrInvalidScheme},
		{"no scheme", "example.com", ErrInvalidScheme},
		{"no host", "http://", ErrInvalidSeed},
		{"unparsable", "http://[::1", ErrInvalidSeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			u, err := ValidateSeed(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if u == nil {
					t.Fatal("expected URL")
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSeed(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
