package version

import (
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}

func TestInfo_OptionalFields(t *testing.T) {
	origCommit, origDate := GitCommit, BuildDate
	defer func() { GitCommit, BuildDate = origCommit, origDate }()

	GitCommit, BuildDate = "", ""
	info := Info(false)
	if !strings.HasPrefix(info, "movepvm "+Version+"\n") {
		t.Fatalf("unexpected info %q", info)
	}
	if strings.Contains(info, "commit:") || strings.Contains(info, "built:") {
		t.Fatalf("empty fields should be omitted: %q", info)
	}

	GitCommit, BuildDate = "abc123def456", "2024-01-15T10:30:00Z"
	info = Info(false)
	if !strings.Contains(info, "commit: abc123def456\n") || !strings.Contains(info, "built: 2024-01-15T10:30:00Z\n") {
		t.Fatalf("unexpected info %q", info)
	}
}

func TestColored(t *testing.T) {
	origVersion, origNoColor := Version, color.NoColor
	defer func() { Version, color.NoColor = origVersion, origNoColor }()
	color.NoColor = true

	cases := map[string]string{
		"1.2.3":                "1.2.3",
		"0.1.0-dev":            "0.1.0-dev",
		"1.2.3-rc.1+build.123": "1.2.3-rc.1+build.123",
		"weird":                "weird",
	}
	for in, want := range cases {
		Version = in
		if got := Colored(); got != want {
			t.Errorf("Colored(%q) = %q, want %q", in, got, want)
		}
	}

	if os.Getenv("NO_COLOR") != "" {
		return
	}
	color.NoColor = false
	Version = "1.2.3"
	if got := Colored(); got == "1.2.3" || !strings.Contains(got, "\x1b[") {
		t.Fatalf("expected escape codes, got %q", got)
	}
}
