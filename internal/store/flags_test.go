package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFlagsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.json")

	flags, err := NewFlags(path)
	if err != nil {
		t.Fatal(err)
	}

	if flags.Seen(OnboardingSeenKey) {
		t.Error("fresh store reports flag as seen")
	}

	if err := flags.MarkSeen(OnboardingSeenKey); err != nil {
		t.Fatal(err)
	}
	if !flags.Seen(OnboardingSeenKey) {
		t.Error("flag not seen after MarkSeen")
	}

	// A new instance over the same file sees the persisted flag.
	reloaded, err := NewFlags(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reloaded.Seen(OnboardingSeenKey) {
		t.Error("flag lost across reload")
	}
	if reloaded.Seen("some_other_flag") {
		t.Error("unknown flag reported as seen")
	}
}

func TestFlagsMissingFileIsFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "flags.json")

	flags, err := NewFlags(path)
	if err != nil {
		t.Fatal(err)
	}
	if flags.Seen(OnboardingSeenKey) {
		t.Error("missing file reports flag as seen")
	}

	if err := flags.MarkSeen(OnboardingSeenKey); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("flags file not created: %v", err)
	}
}

func TestFlagsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFlags(path); err == nil {
		t.Error("corrupt file accepted")
	}
}
