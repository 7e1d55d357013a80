package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	// MaxSize is the size in bytes that triggers rotation. Zero uses 5MB.
	MaxSize int64

	// MaxAge removes rotated files older than this many days. Zero keeps them.
	MaxAge int

	// MaxBackups caps the number of rotated files. Zero keeps all.
	MaxBackups int

	// Daily rotates when the calendar day changes.
	Daily bool
}

// DefaultRotationConfig returns the default rotation policy.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    5 * 1024 * 1024,
		MaxAge:     30,
		MaxBackups: 3,
	}
}

// RotatingWriter is an append-only log file that rotates by size or day.
// Writes take an exclusive flock so concurrent tend processes (e.g. a
// diff while an apply runs) do not interleave partial lines.
type RotatingWriter struct {
	mu      sync.Mutex
	path    string
	cfg     RotationConfig
	file    *os.File
	size    int64
	opened  time.Time
	nowFunc func() time.Time
}

// NewRotatingWriter opens path for appending, creating parent directories.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{path: path, cfg: cfg, nowFunc: time.Now}
	if err := w.open(); err != nil {
		return nil, err
	}
	w.prune()
	return w, nil
}

// Write appends p, rotating first if needed.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.due(int64(len(p))) {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
	}

	fd := int(w.file.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return 0, fmt.Errorf("locking log file: %w", err)
	}
	defer func() { _ = unix.Flock(fd, unix.LOCK_UN) }()

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing log file: %w", err)
	}
	return n, nil
}

// Close syncs and closes the file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	_ = w.file.Sync()
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.file = f
	w.size = info.Size()
	w.opened = info.ModTime()
	if w.size == 0 {
		w.opened = w.nowFunc()
	}
	return nil
}

func (w *RotatingWriter) due(incoming int64) bool {
	if w.size > 0 && w.size+incoming > w.cfg.MaxSize {
		return true
	}
	if w.cfg.Daily {
		now := w.nowFunc()
		y1, m1, d1 := now.Date()
		y2, m2, d2 := w.opened.Date()
		return y1 != y2 || m1 != m2 || d1 != d2
	}
	return false
}

// rotatedName returns the backup path: tend.log -> tend.20260102-150405.log.
func (w *RotatingWriter) rotatedName(t time.Time) string {
	ext := filepath.Ext(w.path)
	return strings.TrimSuffix(w.path, ext) + "." + t.Format("20060102-150405") + ext
}

func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing log file: %w", err)
	}
	w.file = nil

	if err := os.Rename(w.path, w.rotatedName(w.nowFunc())); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("renaming log file: %w", err)
	}
	if err := w.open(); err != nil {
		return err
	}
	w.prune()
	return nil
}

// backups lists rotated files, newest first.
func (w *RotatingWriter) backups() []string {
	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == base || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	// Timestamped names sort chronologically.
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

func (w *RotatingWriter) prune() {
	cutoff := time.Time{}
	if w.cfg.MaxAge > 0 {
		cutoff = w.nowFunc().AddDate(0, 0, -w.cfg.MaxAge)
	}
	for i, path := range w.backups() {
		if w.cfg.MaxBackups > 0 && i >= w.cfg.MaxBackups {
			_ = os.Remove(path)
			continue
		}
		if !cutoff.IsZero() {
			if info, err := os.Stat(path); err == nil && info.ModTime().Before(cutoff) {
				_ = os.Remove(path)
			}
		}
	}
}
