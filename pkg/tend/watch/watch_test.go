package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_FiresOnceForBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("packages: {}\n"), 0o644))

	w, err := New(path, 50*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			calls.Add(1)
			return nil
		})
	}()

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("packages:\n  apt: {}\n"), 0o644))
	}

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	assert.NoError(t, <-done)
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")

	w, err := New(path, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, path, w.Path())

	var calls atomic.Int32
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	go func() {
		_ = os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644)
	}()
	require.NoError(t, w.Run(ctx, func(context.Context) error {
		calls.Add(1)
		return nil
	}))
	assert.Zero(t, calls.Load())
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope", "manifest.yaml"), 0)
	assert.Error(t, err)
}
