// Package snapshot persists the most recent inventory scan so status
// reporting does not have to rescan every source.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jamesainslie/tend/pkg/tend/types"
)

// ErrNoSnapshot is returned by Load when no scan has been saved yet.
var ErrNoSnapshot = errors.New("no scan snapshot")

// version is bumped when the file layout changes; older files are ignored.
const version = 1

// Snapshot is the latest scan, grouped by source.
type Snapshot struct {
	Version   int                             `json:"version"`
	Timestamp time.Time                       `json:"timestamp"`
	Host      string                          `json:"host,omitempty"`
	Sources   map[types.Source][]types.Record `json:"sources"`
	Skipped   []types.Source                  `json:"skipped,omitempty"`
}

// New builds a snapshot from package records. Path records are ignored.
func New(records []types.Record, skipped []types.Source) *Snapshot {
	s := &Snapshot{
		Version:   version,
		Timestamp: time.Now().UTC(),
		Sources:   make(map[types.Source][]types.Record),
		Skipped:   skipped,
	}
	if host, err := os.Hostname(); err == nil {
		s.Host = host
	}
	for _, r := range records {
		if r.Domain.IsPath() {
			continue
		}
		s.Sources[r.Source] = append(s.Sources[r.Source], r)
	}
	for src := range s.Sources {
		recs := s.Sources[src]
		sort.Slice(recs, func(i, j int) bool { return recs[i].Name < recs[j].Name })
	}
	return s
}

// Age returns how long ago the snapshot was taken.
func (s *Snapshot) Age(now time.Time) time.Duration {
	if s == nil || s.Timestamp.IsZero() {
		return 0
	}
	return now.Sub(s.Timestamp)
}

// Counts returns the number of installed packages per source.
func (s *Snapshot) Counts() map[types.Source]int {
	out := make(map[types.Source]int, len(s.Sources))
	for src, recs := range s.Sources {
		n := 0
		for _, r := range recs {
			if r.Installed() {
				n++
			}
		}
		out[src] = n
	}
	return out
}

// Records flattens the snapshot in canonical source order.
func (s *Snapshot) Records() []types.Record {
	var out []types.Record
	for _, src := range types.Sources {
		out = append(out, s.Sources[src]...)
	}
	return out
}

// Save writes the snapshot to path, replacing any previous one atomically.
func Save(path string, s *Snapshot) error {
	if s == nil {
		return errors.New("snapshot cannot be nil")
	}
	if s.Version == 0 {
		s.Version = version
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads the snapshot at path. A missing file, or one written by an
// incompatible version, yields ErrNoSnapshot.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	if s.Version != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrNoSnapshot, s.Version)
	}
	if s.Sources == nil {
		s.Sources = make(map[types.Source][]types.Record)
	}
	return &s, nil
}
