// Package trash moves user paths to the desktop trash instead of deleting
// them outright. When no trash tool is installed it falls back to
// permanent deletion and says so.
package trash

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jamesainslie/tend/pkg/tend/runner"
)

// commandTimeout bounds each trash tool invocation.
const commandTimeout = 30 * time.Second

// tools are tried in order; each takes the path as its final argument.
var tools = []struct {
	name string
	args []string
}{
	{"gio", []string{"trash"}},
	{"trash-put", nil},
}

// Trasher moves paths to the trash through the first working tool.
type Trasher struct {
	run runner.Runner
}

// New creates a Trasher.
func New(run runner.Runner) *Trasher {
	return &Trasher{run: run}
}

// Available reports whether any trash tool is installed.
func (t *Trasher) Available() bool {
	for _, tool := range tools {
		if _, err := t.run.LookPath(tool.name); err == nil {
			return true
		}
	}
	return false
}

// Move trashes path. trashed is false when the path was deleted
// permanently because no tool succeeded.
func (t *Trasher) Move(ctx context.Context, path string) (trashed bool, err error) {
	if _, err := os.Lstat(path); err != nil {
		return false, fmt.Errorf("cannot trash %q: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("cannot resolve absolute path for %q: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	for _, tool := range tools {
		if _, err := t.run.LookPath(tool.name); err != nil {
			continue
		}
		args := append(append([]string(nil), tool.args...), abs)
		if _, err := t.run.Run(ctx, tool.name, args...); err == nil {
			return true, nil
		}
	}

	if err := os.RemoveAll(abs); err != nil {
		return false, fmt.Errorf("failed to delete %q: %w", abs, err)
	}
	return false, nil
}
