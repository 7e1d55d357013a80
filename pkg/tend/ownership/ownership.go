// Package ownership answers whether a discovered path belongs to something
// still installed on the machine. Lookups never modify the system.
package ownership

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/tend/pkg/tend/logging"
	"github.com/jamesainslie/tend/pkg/tend/runner"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

var logger = logging.Get("ownership")

// Result is the outcome of an ownership lookup.
type Result struct {
	// Owned is true when an installed package or program claims the path.
	Owned bool

	// Owner names the claimant, e.g. "dpkg:openssh-client" or "bin:code".
	Owner string

	// App is the application name the path was attributed to, if any. A
	// non-empty App with Owned false means the application is gone.
	App string
}

// Lookup resolves the owner of a path.
type Lookup interface {
	Owner(ctx context.Context, path string) (Result, error)
}

// DpkgLookup asks dpkg which package installed a path.
type DpkgLookup struct {
	run runner.Runner
}

// NewDpkgLookup creates a dpkg-backed lookup.
func NewDpkgLookup(run runner.Runner) *DpkgLookup {
	return &DpkgLookup{run: run}
}

// Owner runs `dpkg -S path`. Exit status 1 means no package owns the path.
func (d *DpkgLookup) Owner(ctx context.Context, path string) (Result, error) {
	if _, err := d.run.LookPath("dpkg"); err != nil {
		return Result{}, fmt.Errorf("%w: dpkg not found", types.ErrUnavailable)
	}

	out, err := d.run.Run(ctx, "dpkg", "-S", path)
	if err != nil {
		if out.ExitCode == 1 {
			return Result{}, nil
		}
		return Result{}, runner.Describe(out, err)
	}

	// "pkg-a, pkg-b: /path" for each matching line; the first line wins.
	line := strings.SplitN(out.Text(), "\n", 2)[0]
	idx := strings.Index(line, ": ")
	if idx <= 0 {
		return Result{}, fmt.Errorf("unexpected dpkg -S output %q", line)
	}
	pkgs := strings.Split(line[:idx], ",")
	return Result{Owned: true, Owner: "dpkg:" + strings.TrimSpace(pkgs[0])}, nil
}

// AppLookup attributes a candidate path to an application by its base name
// (".vscode" -> "vscode", "org.gimp.GIMP" -> "gimp") and reports it owned
// when a program of that name is on PATH or a package with that name is
// installed.
type AppLookup struct {
	run       runner.Runner
	installed map[string]string
}

// NewAppLookup creates an application lookup. records is the current
// package inventory; only installed records count.
func NewAppLookup(run runner.Runner, records []types.Record) *AppLookup {
	installed := make(map[string]string)
	for _, rec := range records {
		if rec.Domain != types.DomainPackages || !rec.Installed() {
			continue
		}
		for _, name := range appNames(rec.Name) {
			if _, ok := installed[name]; !ok {
				installed[name] = string(rec.Source) + ":" + rec.Name
			}
		}
	}
	return &AppLookup{run: run, installed: installed}
}

// Owner reports whether the application a path belongs to is present.
func (a *AppLookup) Owner(ctx context.Context, path string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	names := appNames(filepath.Base(path))
	if len(names) == 0 {
		return Result{}, nil
	}
	res := Result{App: names[0]}
	for _, name := range names {
		if owner, ok := a.installed[name]; ok {
			res.Owned, res.Owner = true, owner
			return res, nil
		}
		if _, err := a.run.LookPath(name); err == nil {
			res.Owned, res.Owner = true, "bin:"+name
			return res, nil
		}
	}
	return res, nil
}

// appNames derives candidate application names from a package or path
// name, most specific first.
func appNames(name string) []string {
	name = strings.ToLower(strings.TrimPrefix(name, "."))
	for _, ext := range []string{".desktop", ".conf", ".json", ".yaml", ".toml"} {
		name = strings.TrimSuffix(name, ext)
	}
	if name == "" {
		return nil
	}
	out := []string{name}
	// Reverse-DNS application IDs: org.gimp.GIMP -> gimp.
	if parts := strings.Split(name, "."); len(parts) >= 3 {
		out = append(out, parts[len(parts)-1])
	}
	if trimmed := strings.TrimSuffix(name, "-bin"); trimmed != name {
		out = append(out, trimmed)
	}
	return out
}

// Chain tries lookups in order. The first owning result wins. When nothing
// owns the path, the first error (if any) is returned so the caller can
// treat the path as undecidable; otherwise the most informative unowned
// result is returned.
type Chain []Lookup

// Owner implements Lookup.
func (c Chain) Owner(ctx context.Context, path string) (Result, error) {
	var (
		best     Result
		firstErr error
	)
	for _, l := range c {
		res, err := l.Owner(ctx, path)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Result{}, err
			}
			logger.Debug("ownership lookup failed", "path", path, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if res.Owned {
			return res, nil
		}
		if best.App == "" {
			best = res
		}
	}
	if firstErr != nil {
		return Result{}, firstErr
	}
	return best, nil
}
