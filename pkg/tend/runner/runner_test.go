package runner

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func TestExec_Success(t *testing.T) {
	requireTool(t, "sh")
	r := NewExec(5 * time.Second)

	out, err := r.Run(context.Background(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Text())
	assert.Equal(t, 0, out.ExitCode)
}

func TestExec_NonZeroExit(t *testing.T) {
	requireTool(t, "sh")
	r := NewExec(5 * time.Second)

	out, err := r.Run(context.Background(), "sh", "-c", "echo broken >&2; exit 3")
	require.Error(t, err)
	assert.Equal(t, 3, out.ExitCode)
	assert.Contains(t, Describe(out, err).Error(), "broken")
}

func TestExec_Timeout(t *testing.T) {
	requireTool(t, "sleep")
	r := NewExec(50 * time.Millisecond)

	start := time.Now()
	_, err := r.Run(context.Background(), "sleep", "5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExec_MissingTool(t *testing.T) {
	r := NewExec(time.Second)
	_, err := r.LookPath("definitely-not-a-real-tool-xyz")
	assert.True(t, IsNotFound(err))
}

func TestFake(t *testing.T) {
	f := NewFake("apt-get").
		Fail("apt-get remove -y htop", 100, "E: Unable to locate package htop")

	_, err := f.LookPath("apt-get")
	require.NoError(t, err)
	_, err = f.LookPath("snap")
	assert.True(t, IsNotFound(err))

	_, err = f.Run(context.Background(), "apt-get", "install", "-y", "git")
	require.NoError(t, err)
	out, err := f.Run(context.Background(), "apt-get", "remove", "-y", "htop")
	require.Error(t, err)
	assert.Equal(t, 100, out.ExitCode)

	assert.Equal(t, []string{"apt-get install -y git", "apt-get remove -y htop"}, f.Calls())
	assert.Len(t, f.CallsWithPrefix("apt-get remove"), 1)
}
