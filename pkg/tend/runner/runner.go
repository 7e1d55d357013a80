// Package runner executes external system tools with a bounded timeout.
// Scanners and operators share it so every external invocation is
// time-limited and can be faked in tests.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds one external command when no timeout is configured.
const DefaultTimeout = 10 * time.Minute

// ErrTimeout is returned when a command exceeds its timeout.
var ErrTimeout = errors.New("command timed out")

// Output is the captured result of one command.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Text returns the trimmed stderr, falling back to stdout.
func (o Output) Text() string {
	if s := strings.TrimSpace(string(o.Stderr)); s != "" {
		return s
	}
	return strings.TrimSpace(string(o.Stdout))
}

// Runner abstracts command execution.
type Runner interface {
	// Run executes name with args. A non-zero exit yields an error together
	// with the captured output.
	Run(ctx context.Context, name string, args ...string) (Output, error)

	// LookPath reports the resolved path of a tool, or an error if the tool
	// is not installed.
	LookPath(name string) (string, error)
}

// Exec runs commands on the local host.
type Exec struct {
	// Timeout bounds each command. Zero uses DefaultTimeout.
	Timeout time.Duration

	// Env is appended to the inherited environment.
	Env []string
}

// NewExec creates an Exec runner with the given per-command timeout.
// Package tools are run non-interactively.
func NewExec(timeout time.Duration) *Exec {
	return &Exec{
		Timeout: timeout,
		Env:     []string{"DEBIAN_FRONTEND=noninteractive"},
	}
}

// Run executes the command, killing it if it exceeds the timeout.
func (r *Exec) Run(ctx context.Context, name string, args ...string) (Output, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(cmd.Environ(), r.Env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return out, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		out.ExitCode = -1
		return out, fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, commandLine(name, args))
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, fmt.Errorf("%s: exit status %d", commandLine(name, args), out.ExitCode)
	}

	out.ExitCode = 127
	return out, fmt.Errorf("%s: %w", commandLine(name, args), err)
}

// LookPath resolves a tool on PATH.
func (r *Exec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Describe formats a failed command's error together with its output so the
// underlying tool message reaches the user.
func Describe(out Output, err error) error {
	if err == nil {
		return nil
	}
	if text := out.Text(); text != "" {
		return fmt.Errorf("%w: %s", err, lastLine(text))
	}
	return err
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
