package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	DefaultFileName = ".checkout-flags.json"

	// OnboardingSeenKey marks that the first-purchase walkthrough was shown.
	OnboardingSeenKey = "onboarding_seen"
)

// Flags persists one-shot UI flags between sessions as a small JSON file.
// Writes go through a temp file and rename so a crash never truncates it.
type Flags struct {
	filePath string
	mu       sync.RWMutex
	values   map[string]bool
}

type flagsFile struct {
	Flags map[string]bool `json:"flags"`
}

func NewFlags(filePath string) (*Flags, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultFileName)
	}

	f := &Flags{
		filePath: filePath,
		values:   make(map[string]bool),
	}

	if err := f.load(); err != nil {
		// A missing file is the first run, created on first save.
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	return f, nil
}

func (f *Flags) load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return err
	}

	var file flagsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal flags: %w", err)
	}

	f.values = file.Flags
	if f.values == nil {
		f.values = make(map[string]bool)
	}

	return nil
}

func (f *Flags) save() error {
	f.mu.RLock()
	data, err := json.MarshalIndent(flagsFile{Flags: f.values}, "", "  ")
	f.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal flags: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := f.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write flags: %w", err)
	}

	if err := os.Rename(tempFile, f.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Seen reports whether the named flag was ever set. Unknown flags are false.
func (f *Flags) Seen(key string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.values[key]
}

// MarkSeen sets the flag and persists immediately.
func (f *Flags) MarkSeen(key string) error {
	f.mu.Lock()
	f.values[key] = true
	f.mu.Unlock()

	return f.save()
}

func (f *Flags) FilePath() string {
	return f.filePath
}
