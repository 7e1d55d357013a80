package logging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests touching global state do not run in parallel.

func TestInit(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{Level: "info", Path: filepath.Join(dir, "a.log")}, false},
		{"component overrides", Config{Level: "warn", Path: filepath.Join(dir, "b.log"), Components: map[string]string{"operator": "debug"}}, false},
		{"console", Config{Level: "info", Path: filepath.Join(dir, "c.log"), ConsoleLevel: "error"}, false},
		{"bad level", Config{Level: "loud", Path: filepath.Join(dir, "d.log")}, true},
		{"bad component level", Config{Level: "info", Path: filepath.Join(dir, "e.log"), Components: map[string]string{"x": "nope"}}, true},
		{"bad console level", Config{Level: "info", Path: filepath.Join(dir, "f.log"), ConsoleLevel: "nope"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Init(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NoError(t, Close())
		})
	}
}

func TestGet_StableAcrossInit(t *testing.T) {
	lg := Get("stable")
	assert.Same(t, lg, Get("stable"))

	path := filepath.Join(t.TempDir(), "tend.log")
	require.NoError(t, Init(Config{Level: "debug", Path: path}))
	defer func() { _ = Close() }()

	lg.Info("after init", "key", "value")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "after init")
	assert.Contains(t, string(data), "stable")
}

func TestComponentLevelOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tend.log")
	require.NoError(t, Init(Config{
		Level:      "warn",
		Path:       path,
		Components: map[string]string{"chatty": "debug"},
	}))

	Get("chatty").Debug("chatty debug")
	Get("quiet").Info("quiet info")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "chatty debug")
	assert.NotContains(t, string(data), "quiet info")
}

func TestRecent(t *testing.T) {
	ResetRecent()
	lg := Get("recent")
	lg.Info("not retained")
	lg.Warn("history write failed")
	lg.Error("boom")

	got := Recent()
	require.Len(t, got, 2)
	assert.Equal(t, LevelWarn, got[0].Level)
	assert.Equal(t, "recent", got[0].Component)
	assert.Equal(t, "boom", got[1].Message)

	ResetRecent()
	assert.Empty(t, Recent())
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseLevel("verbose")
	assert.True(t, errors.Is(err, ErrInvalidLevel))
}

func TestDefaultLogPath(t *testing.T) {
	t.Parallel()
	assert.True(t, strings.HasSuffix(DefaultLogPath(), filepath.Join("tend", "tend.log")))
}

func TestRing(t *testing.T) {
	t.Parallel()

	r := NewRing(3)
	for _, m := range []string{"a", "b", "c", "d"} {
		r.Add(Entry{Message: m})
	}
	require.Equal(t, 3, r.Len())
	got := r.Entries()
	assert.Equal(t, "b", got[0].Message)
	assert.Equal(t, "d", got[2].Message)

	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Len(t, NewRing(0).entries, DefaultRingSize)
}

func TestRotatingWriter_SizeRotation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tend.log")
	w, err := NewRotatingWriter(path, RotationConfig{MaxSize: 10, MaxBackups: 2})
	require.NoError(t, err)

	clock := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	w.nowFunc = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	for i := 0; i < 5; i++ {
		_, err := w.Write([]byte("0123456789"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	assert.Len(t, w.backups(), 2)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestRotatingWriter_Daily(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "tend.log")
	w, err := NewRotatingWriter(path, RotationConfig{Daily: true})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	_, err = w.Write([]byte("today\n"))
	require.NoError(t, err)

	w.nowFunc = func() time.Time { return time.Now().AddDate(0, 0, 1) }
	_, err = w.Write([]byte("tomorrow\n"))
	require.NoError(t, err)

	assert.Len(t, w.backups(), 1)
}

func TestRotatingWriter_Concurrent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tend.log")
	w, err := NewRotatingWriter(path, RotationConfig{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = w.Write([]byte("line\n"))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 400, strings.Count(string(data), "line\n"))
}
