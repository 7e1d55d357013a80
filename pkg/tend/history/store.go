package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jamesainslie/tend/pkg/tend/logging"
	"golang.org/x/sys/unix"
)

var logger = logging.Get("history")

var (
	// ErrNotFound is returned when no entry matches an ID.
	ErrNotFound = errors.New("history entry not found")

	// ErrAmbiguous is returned when an ID prefix matches several entries.
	ErrAmbiguous = errors.New("history entry ID is ambiguous")
)

// maxLine bounds one JSON line; large path batches can be long.
const maxLine = 8 * 1024 * 1024

// Store is a JSON-lines history log. Each Record appends exactly one line
// with a single write under an exclusive flock, so concurrent tend
// processes never interleave entries.
type Store struct {
	path string
	mu   sync.Mutex
}

// Open returns a store backed by path. The file is created on first Record.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history path cannot be empty")
	}
	return &Store{path: path}, nil
}

// Path returns the log file location.
func (s *Store) Path() string {
	return s.path
}

// Record appends an entry. A missing ID or timestamp is filled in.
func (s *Store) Record(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Timestamp = e.Timestamp.UTC()
	if e.Items == nil {
		e.Items = []Item{}
	}

	line, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal history entry: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Entry{}, fmt.Errorf("failed to create history directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to open history: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return Entry{}, fmt.Errorf("failed to lock history: %w", err)
	}
	defer func() { _ = unix.Flock(int(f.Fd()), unix.LOCK_UN) }()

	if _, err := f.Write(line); err != nil {
		return Entry{}, fmt.Errorf("failed to append history entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		return Entry{}, fmt.Errorf("failed to sync history: %w", err)
	}
	logger.Debug("recorded history entry", "id", e.ID, "action", e.Action, "items", len(e.Items))
	return e, nil
}

// Query returns entries newest first. limit <= 0 returns everything; a
// non-nil since drops entries older than it.
func (s *Store) Query(limit int, since *time.Time) ([]Entry, error) {
	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if since != nil && entries[i].Timestamp.Before(*since) {
			continue
		}
		out = append(out, entries[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Get returns the entry with the given ID or unique ID prefix.
func (s *Store) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("entry ID cannot be empty")
	}
	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}

	var match *Entry
	for i := range entries {
		e := &entries[i]
		if e.ID == id {
			return e, nil
		}
		if strings.HasPrefix(e.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("%w: %s", ErrAmbiguous, id)
			}
			match = e
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return match, nil
}

// readAll reads every well-formed entry in file order. Corrupt lines, such
// as a torn write after a crash, are skipped.
func (s *Store) readAll() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		return nil, fmt.Errorf("failed to lock history: %w", err)
	}
	defer func() { _ = unix.Flock(int(f.Fd()), unix.LOCK_UN) }()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil || e.ID == "" {
			logger.Warn("skipping corrupt history line", "line", lineNo, "path", s.path)
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return entries, nil
}
