// Package content provides a minimal, explicitly non-authoritative music
// directory scanner. Weighted selection, cadence, DJ-intro matching, and
// every other content decision are out of scope for this module; this
// scanner exists only so the station binary has something to enqueue when
// run standalone, cycling supported files in directory order.
package content

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dhowden/tag"
	"github.com/retrowaves/retrowaves/internal/station"
)

var supportedExt = map[string]bool{
	".mp3": true,
}

// Track is the metadata this scanner extracts per file, kept intentionally
// small since content decisions belong to a real selection layer.
type Track struct {
	Path   string
	Title  string
	Artist string
}

// Scanner walks a directory once at startup and round-robins its files.
// It is not a playlist, a cache, or a scheduler — just the simplest thing
// that can hand the PlayoutEngine a path.
type Scanner struct {
	mu     sync.Mutex
	tracks []Track
	next   int
}

// NewScanner walks dir for supported audio files, reading tags best-effort.
func NewScanner(dir string) (*Scanner, error) {
	var tracks []Track

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !supportedExt[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		tracks = append(tracks, readTrack(path))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Scanner{tracks: tracks}, nil
}

func readTrack(path string) Track {
	t := Track{Path: path, Title: filepath.Base(path)}

	f, err := os.Open(path)
	if err != nil {
		return t
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		slog.Debug("content scanner: could not read tags", "path", path, "error", err)
		return t
	}
	if m.Title() != "" {
		t.Title = m.Title()
	}
	t.Artist = m.Artist()
	return t
}

// Next returns the next track in round-robin order, wrapping at the end.
// Returns ok=false if the scanner found nothing to play.
func (s *Scanner) Next() (Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tracks) == 0 {
		return Track{}, false
	}
	t := s.tracks[s.next]
	s.next = (s.next + 1) % len(s.tracks)
	return t, true
}

// NextAudioEvent adapts Next to the station package's AudioEvent shape,
// always as a song with unity gain — the only judgment this demo source
// is allowed to make.
func (s *Scanner) NextAudioEvent() (station.AudioEvent, bool) {
	t, ok := s.Next()
	if !ok {
		return station.AudioEvent{}, false
	}
	return station.AudioEvent{Path: t.Path, Type: station.TypeSong, Gain: 1.0}, true
}
