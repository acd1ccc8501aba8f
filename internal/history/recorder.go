// Package history persists the station's play history at shutdown:
// cmd/station calls Recorder.Save once the station supervisor has stopped.
// station.Supervisor itself exposes no pre-shutdown hook that invokes it.
// Play history and counts are the content layer's responsibility;
// this package only guarantees that whatever snapshot it is handed lands
// on disk atomically. The on-disk format is opaque to the core — YAML is
// used here only because it is a convenient human-diffable default.
package history

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry is one played segment, recorded by file path for a human-readable log.
type Entry struct {
	Path   string    `yaml:"path"`
	Type   string    `yaml:"type"`
	PlayedAt time.Time `yaml:"played_at"`
}

// Snapshot is the document persisted by Recorder.Save.
type Snapshot struct {
	Entries []Entry `yaml:"entries"`
}

// Recorder owns the on-disk play history document and writes it
// atomically: write to a temp file in the same directory, then rename.
type Recorder struct {
	path string

	mu   sync.Mutex
	snap Snapshot
}

// NewRecorder creates a Recorder backed by path. The file is not read or
// created until the first Save.
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

// Record appends one played entry to the in-memory snapshot. It does not
// write to disk; call Save (cmd/station does so after the supervisor has
// stopped) to persist.
func (r *Recorder) Record(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.Entries = append(r.snap.Entries, e)
}

// Save serializes the current snapshot to YAML and writes it atomically.
func (r *Recorder) Save() error {
	r.mu.Lock()
	data, err := yaml.Marshal(r.snap)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal play history: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "play_history-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file to %q: %w", r.path, err)
	}

	slog.Info("play history saved", "path", r.path, "entries", len(r.snap.Entries))
	return nil
}
