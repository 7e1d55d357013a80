package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jamesainslie/tend/pkg/tend/diff"
	"github.com/jamesainslie/tend/pkg/tend/manifest"
	"github.com/jamesainslie/tend/pkg/tend/output"
	"github.com/jamesainslie/tend/pkg/tend/planner"
	"github.com/jamesainslie/tend/pkg/tend/snapshot"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

// ApplyOptions configures Apply.
type ApplyOptions struct {
	// Source restricts the run to one package source. Nil means every
	// available source.
	Source *types.Source

	// Purge removes configuration too, where the source supports it.
	Purge bool

	// DryRun reports what would happen without touching the system.
	DryRun bool

	// Yes skips the confirmation prompt.
	Yes bool
}

// Diff computes and renders the package diff.
func (a *App) Diff(ctx context.Context, filter *types.Source) (*diff.Result, error) {
	m, err := a.loadManifest()
	if err != nil {
		return nil, err
	}
	res, err := diff.Compute(ctx, a.Scanners, m, a.Registry, filter)
	if err != nil {
		return nil, err
	}
	a.saveSnapshot(res)

	report := &output.Report{Command: "diff", Diff: res}
	for _, src := range res.Skipped {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s is not available on this system", src))
	}
	return res, a.render(report)
}

// Apply reconciles installed packages with the manifest. The returned exit
// code is 0 on success, when there is nothing to do and when the user
// declines the plan; it is 1 when any action failed or when the requested
// source is unavailable.
func (a *App) Apply(ctx context.Context, opts ApplyOptions) (int, error) {
	m, err := a.loadManifest()
	if err != nil {
		return ExitFailed, err
	}

	res, err := diff.Compute(ctx, a.Scanners, m, a.Registry, opts.Source)
	if err != nil {
		if errors.Is(err, types.ErrUnavailable) {
			logger.Error("no usable package source", "error", err)
		}
		return ExitFailed, err
	}
	a.saveSnapshot(res)

	ops := a.operators(opts.DryRun)
	actions := planner.Plan(res, opts.Purge, a.Registry, ops)
	logger.Info("planned", "actions", len(actions), "purge", opts.Purge, "dry_run", opts.DryRun)

	report := &output.Report{Command: "apply", DryRun: opts.DryRun}
	for _, src := range res.Skipped {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s is not available on this system, skipped", src))
	}

	if len(actions) == 0 {
		logger.Info("nothing to do")
		report.Diff = res
		return ExitOK, a.render(report)
	}

	if !opts.DryRun && !opts.Yes {
		if err := a.render(&output.Report{Command: "apply", Plan: actions}); err != nil {
			return ExitFailed, err
		}
		installs, removals := planner.Split(actions)
		ok, err := a.approve(ctx, fmt.Sprintf("Install %d and remove %d packages?", len(installs), len(removals)), false)
		if err != nil {
			return ExitFailed, err
		}
		if !ok {
			logger.Info("apply aborted by user")
			fmt.Fprintln(a.Out, "Aborted.")
			return ExitOK, nil
		}
	} else {
		report.Plan = actions
	}

	return a.finish(ctx, "apply", actions, ops, opts.DryRun, report)
}

// saveSnapshot persists the scanned inventory. Failure only warns.
func (a *App) saveSnapshot(res *diff.Result) {
	if a.Config.StateDir == "" {
		return
	}
	if err := snapshot.Save(a.Config.SnapshotPath(), snapshot.New(res.Records, res.Skipped)); err != nil {
		logger.Warn("failed to save scan snapshot", "error", err)
	}
}

// Status renders the cached scan next to the manifest.
func (a *App) Status() (*output.Status, error) {
	st := &output.Status{Manifest: a.Config.Manifest, Counts: map[types.Source]int{}}
	report := &output.Report{Command: "status", Status: st}

	if m, err := manifest.Load(a.Config.Manifest); err == nil {
		for _, src := range m.DeclaredSources() {
			sec := m.PackageSection(src)
			st.Declared += len(sec.Keep) + len(sec.Remove)
		}
		st.Declared += len(m.Filesystem.Keep) + len(m.Filesystem.Remove) +
			len(m.Configs.Keep) + len(m.Configs.Remove)
	} else if !errors.Is(err, manifest.ErrNotFound) {
		return nil, err
	}

	snap, err := snapshot.Load(a.Config.SnapshotPath())
	switch {
	case err == nil:
		st.Host, st.Taken, st.Counts, st.Skipped = snap.Host, snap.Timestamp, snap.Counts(), snap.Skipped
		report.ScanAge = snap.Age(a.now())
	case errors.Is(err, snapshot.ErrNoSnapshot):
		report.Warnings = append(report.Warnings, "no scan yet; run tend diff")
	default:
		return nil, err
	}
	return st, a.render(report)
}

// Init scans every available source and writes a manifest keeping all
// installed packages. An existing manifest is only replaced with force.
func (a *App) Init(ctx context.Context, force bool) (string, error) {
	path := a.Config.Manifest
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("manifest already exists at %s (use --force to overwrite)", path)
	}

	records, err := a.Scanners.ScanAll(ctx)
	if err != nil {
		return "", err
	}
	m := manifest.FromRecords(records, "installed at init")
	if err := manifest.Save(path, m); err != nil {
		return "", err
	}
	a.saveSnapshot(&diff.Result{Records: records})

	logger.Info("manifest created", "path", path, "sources", len(m.Packages))
	return path, nil
}
