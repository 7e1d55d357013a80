package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Response is a canned result for a Fake runner.
type Response struct {
	Output Output
	Err    error
}

// Fake is a scripted Runner for tests. Responses are keyed by the full
// command line ("apt-get remove -y htop"); unmatched commands succeed with
// empty output. Every call is recorded.
type Fake struct {
	mu        sync.Mutex
	responses map[string]Response
	tools     map[string]bool
	calls     []string
}

// NewFake creates a Fake where the given tools are installed.
func NewFake(tools ...string) *Fake {
	f := &Fake{
		responses: make(map[string]Response),
		tools:     make(map[string]bool),
	}
	for _, t := range tools {
		f.tools[t] = true
	}
	return f
}

// On scripts the response for a command line.
func (f *Fake) On(cmdline string, out Output, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmdline] = Response{Output: out, Err: err}
	return f
}

// Fail scripts a non-zero exit for a command line.
func (f *Fake) Fail(cmdline string, exitCode int, stderr string) *Fake {
	return f.On(cmdline, Output{Stderr: []byte(stderr), ExitCode: exitCode},
		fmt.Errorf("%s: exit status %d", cmdline, exitCode))
}

// Run records the call and returns the scripted response.
func (f *Fake) Run(ctx context.Context, name string, args ...string) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	line := commandLine(name, args)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, line)
	if resp, ok := f.responses[line]; ok {
		return resp.Output, resp.Err
	}
	return Output{}, nil
}

// LookPath reports whether the tool was registered as installed.
func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tools[name] {
		return "/usr/bin/" + name, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// Calls returns the recorded command lines in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallsWithPrefix returns recorded command lines starting with prefix.
func (f *Fake) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// IsNotFound reports whether err came from a missing tool.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}
