// Package reconcile wires the pipeline together for one invocation:
// scan, diff, plan, confirm, execute and record. App is the explicit
// context object every command builds once and passes around; nothing in
// the pipeline reaches for process-wide state.
package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jamesainslie/tend/pkg/tend/config"
	"github.com/jamesainslie/tend/pkg/tend/executor"
	"github.com/jamesainslie/tend/pkg/tend/history"
	"github.com/jamesainslie/tend/pkg/tend/logging"
	"github.com/jamesainslie/tend/pkg/tend/manifest"
	"github.com/jamesainslie/tend/pkg/tend/operator"
	"github.com/jamesainslie/tend/pkg/tend/output"
	"github.com/jamesainslie/tend/pkg/tend/ownership"
	"github.com/jamesainslie/tend/pkg/tend/protect"
	"github.com/jamesainslie/tend/pkg/tend/runner"
	"github.com/jamesainslie/tend/pkg/tend/scanner"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

var logger = logging.Get("reconcile")

// Exit codes returned by the mutating operations.
const (
	ExitOK     = 0
	ExitFailed = 1
)

// ConfirmFunc asks the user to approve a plan. Returning false aborts
// before anything runs.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// HistoryStore is the subset of the history store the app needs.
type HistoryStore interface {
	Record(e history.Entry) (history.Entry, error)
	Query(limit int, since *time.Time) ([]history.Entry, error)
	Get(id string) (*history.Entry, error)
}

// PathScanner discovers the candidate paths of one path domain.
type PathScanner interface {
	Scan(ctx context.Context) ([]types.Record, error)
}

// App carries everything one invocation needs.
type App struct {
	Config   *config.Config
	Registry *protect.Registry
	Runner   runner.Runner

	// Scanners reads package inventories.
	Scanners *scanner.Set

	// PathScanners discovers candidates per path domain.
	PathScanners map[types.Domain]PathScanner

	// OperatorOptions builds the operator set; DryRun is set per call.
	OperatorOptions operator.Options

	// Store is the append-only history log.
	Store HistoryStore

	// Lookup overrides ownership resolution. When nil a dpkg and
	// application lookup chain is built per run, cached in Badger when
	// configured.
	Lookup ownership.Lookup

	Out       io.Writer
	Formatter output.Formatter

	// Confirm approves plans. When nil, plans that need approval are
	// aborted unless the caller passed Yes.
	Confirm ConfirmFunc

	// Now defaults to time.Now.
	Now func() time.Time
}

// New builds an app for the local host from configuration.
func New(cfg *config.Config, out io.Writer, format string) (*App, error) {
	formatter, err := output.Get(format)
	if err != nil {
		return nil, err
	}

	reg, err := protect.New(cfg.Home, protect.WithExtra(protect.Patterns{
		types.DomainPackages:   cfg.Protect.Packages,
		types.DomainFilesystem: cfg.Protect.Filesystem,
		types.DomainConfigs:    cfg.Protect.Configs,
	}))
	if err != nil {
		return nil, fmt.Errorf("building protection registry: %w", err)
	}

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return nil, err
	}

	run := runner.NewExec(cfg.CommandTimeout)
	opOpts := operator.DefaultOptions(run, reg)
	opOpts.UseTrash = cfg.UseTrash

	pathScanners := make(map[types.Domain]PathScanner, 2)
	for domain, roots := range map[types.Domain][]string{
		types.DomainFilesystem: cfg.Scan.Filesystem,
		types.DomainConfigs:    cfg.Scan.Configs,
	} {
		pathScanners[domain] = scanner.NewPathScanner(scanner.PathOptions{
			Domain:  domain,
			Roots:   roots,
			Home:    cfg.Home,
			Depth:   cfg.Scan.Depth,
			Exclude: cfg.Scan.Exclude,
		})
	}

	return &App{
		Config:          cfg,
		Registry:        reg,
		Runner:          run,
		Scanners:        scanner.DefaultSet(run),
		PathScanners:    pathScanners,
		OperatorOptions: opOpts,
		Store:           store,
		Out:             out,
		Formatter:       formatter,
	}, nil
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// operators builds the operator set for one run.
func (a *App) operators(dryRun bool) *operator.Set {
	opts := a.OperatorOptions
	opts.DryRun = dryRun
	if opts.Registry == nil {
		opts.Registry = a.Registry
	}
	if opts.Home == "" {
		opts.Home = a.Registry.Home()
	}
	return operator.DefaultSet(opts)
}

// loadManifest reads the configured manifest.
func (a *App) loadManifest() (*manifest.Manifest, error) {
	m, err := manifest.Load(a.Config.Manifest)
	if err != nil {
		if errors.Is(err, manifest.ErrNotFound) {
			return nil, fmt.Errorf("%w (run `tend init` to create one)", err)
		}
		return nil, err
	}
	if err := m.ValidateHome(a.Registry.Home()); err != nil {
		return nil, fmt.Errorf("%s: invalid manifest: %w", a.Config.Manifest, err)
	}
	return m, nil
}

// render writes a report with the configured formatter.
func (a *App) render(r *output.Report) error {
	var buf bytes.Buffer
	if err := a.Formatter.Format(&buf, r); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}
	_, err := a.Out.Write(buf.Bytes())
	return err
}

// approve decides whether a plan may run.
func (a *App) approve(ctx context.Context, prompt string, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	if a.Confirm == nil {
		logger.Warn("confirmation required but not available")
		fmt.Fprintln(a.Out, "Confirmation required; rerun with --yes to proceed.")
		return false, nil
	}
	return a.Confirm(ctx, prompt)
}

// hostMeta returns metadata attached to every history entry.
func hostMeta() map[string]string {
	meta := map[string]string{}
	if host, err := os.Hostname(); err == nil {
		meta[history.MetaHost] = host
	}
	return meta
}

// finish executes an approved plan and records what succeeded. It returns
// the exit code.
func (a *App) finish(ctx context.Context, command string, actions []types.Action, ops *operator.Set, dryRun bool, report *output.Report) (int, error) {
	results := executor.Execute(ctx, actions, ops)
	report.Results = results
	report.DryRun = dryRun

	if !dryRun {
		if _, err := executor.RecordHistory(a.Store, results, command, hostMeta()); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("history not fully recorded: %v", err))
		}
	}

	if err := a.render(report); err != nil {
		return ExitFailed, err
	}
	if failed := types.CountFailures(results); failed > 0 {
		logger.Warn("actions failed", "command", command, "failed", failed, "total", len(results))
		return ExitFailed, nil
	}
	return ExitOK, nil
}
