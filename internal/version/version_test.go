package version

import (
	"strings"
	"testing"
)

func TestShortCommit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc123", "abc123"},
		{"0123456789abcdef", "0123456789ab"},
	}
	for _, tt := range tests {
		if got := shortCommit(tt.in); got != tt.want {
			t.Fatalf("shortCommit(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveAlwaysHasVersion(t *testing.T) {
	t.Parallel()
	info := Resolve()
	if info.Version == "" {
		t.Fatal("Resolve returned an empty version")
	}
	if !strings.Contains(info.GoVersion, "go") {
		t.Fatalf("unexpected go version %q", info.GoVersion)
	}
	if String() == "" {
		t.Fatal("String returned an empty version")
	}
}
