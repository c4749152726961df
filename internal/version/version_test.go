package version

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func withPlainColor(t *testing.T) {
	t.Helper()
	orig := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = orig })
}

func TestColoredKeepsVersionText(t *testing.T) {
	withPlainColor(t)
	if got := Colored(); got != Version {
		t.Fatalf("Colored() = %q, want %q", got, Version)
	}
}

func TestColoredLeavesOddVersionsAlone(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })
	Version = "nightly"
	if got := Colored(); got != "nightly" {
		t.Fatalf("Colored() = %q", got)
	}
}

func TestBannerOptionalFields(t *testing.T) {
	withPlainColor(t)
	origCommit, origDate := GitCommit, BuildDate
	t.Cleanup(func() { GitCommit, BuildDate = origCommit, origDate })

	GitCommit, BuildDate = "", ""
	if got := Banner(); got != "keel "+Version+"\n" {
		t.Fatalf("Banner() = %q", got)
	}

	GitCommit = "abc123def456"
	BuildDate = "2024-01-15T10:30:00Z"
	got := Banner()
	for _, want := range []string{"commit: abc123def456", "built:  2024-01-15T10:30:00Z"} {
		if !strings.Contains(got, want) {
			t.Fatalf("Banner() = %q, missing %q", got, want)
		}
	}
}
