//go:build stave

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yaklabco/stave/pkg/sh"
	"github.com/yaklabco/stave/pkg/st"
)

// Default target when running `stave` with no arguments.
var Default = Build

// Aliases for common targets.
var Aliases = map[string]interface{}{
	"b": Build,
	"t": Test,
	"l": Lint,
	"i": Install,
}

const (
	binaryName = "tend"
	mainPkg    = "./cmd/tend"
	binDir     = "bin"
)

// CI runs lint and tests, then builds the binary.
func CI() error {
	st.Deps(Lint, Test)
	st.Deps(Build)
	return nil
}

// Build compiles bin/tend with version information.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating bin directory: %w", err)
	}
	return sh.RunV("go", "build", "-trimpath", "-ldflags", ldflags(),
		"-o", filepath.Join(binDir, binaryName), mainPkg)
}

// Install copies the built binary into GOBIN.
func Install() error {
	st.Deps(Build)

	dir, err := installDir()
	if err != nil {
		return err
	}
	dst := filepath.Join(dir, binaryName)
	if st.Verbose() {
		fmt.Printf("Installing %s\n", dst)
	}
	return sh.Copy(dst, filepath.Join(binDir, binaryName))
}

// Uninstall removes the binary from GOBIN, if present.
func Uninstall() error {
	dir, err := installDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, binaryName))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Test runs the test suite with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "-cover", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes bin/.
func Clean() error {
	return sh.Rm(binDir)
}

// installDir is GOBIN, falling back to GOPATH/bin.
func installDir() (string, error) {
	gocmd := st.GoCmd()
	if bin, err := sh.Output(gocmd, "env", "GOBIN"); err != nil {
		return "", fmt.Errorf("determining GOBIN: %w", err)
	} else if bin != "" {
		return bin, nil
	}
	gopath, err := sh.Output(gocmd, "env", "GOPATH")
	if err != nil {
		return "", fmt.Errorf("determining GOPATH: %w", err)
	}
	return filepath.Join(strings.Split(gopath, string(os.PathListSeparator))[0], "bin"), nil
}

// ldflags injects version, commit and build date into package main.
func ldflags() string {
	version, commit := "dev", "unknown"
	if v, err := sh.Output("git", "describe", "--tags", "--always", "--dirty"); err == nil && v != "" {
		version = strings.TrimSpace(v)
	}
	if c, err := sh.Output("git", "rev-parse", "--short", "HEAD"); err == nil && c != "" {
		commit = strings.TrimSpace(c)
	}
	date := time.Now().UTC().Format(time.RFC3339)
	return fmt.Sprintf("-s -w -X main.version=%s -X main.commit=%s -X main.date=%s", version, commit, date)
}
