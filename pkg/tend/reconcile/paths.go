package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jamesainslie/tend/pkg/tend/diff"
	"github.com/jamesainslie/tend/pkg/tend/manifest"
	"github.com/jamesainslie/tend/pkg/tend/output"
	"github.com/jamesainslie/tend/pkg/tend/ownership"
	"github.com/jamesainslie/tend/pkg/tend/planner"
	"github.com/jamesainslie/tend/pkg/tend/scanner"
	"github.com/jamesainslie/tend/pkg/tend/snapshot"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

// snapshotFresh is how old a snapshot may be and still stand in for a
// package scan when attributing paths to applications.
const snapshotFresh = time.Hour

// CleanOptions configures Clean.
type CleanOptions struct {
	Domain types.Domain
	DryRun bool
	Yes    bool
}

// OrphanOptions configures Orphans.
type OrphanOptions struct {
	// Domain restricts the report to one path domain. Empty means both.
	Domain types.Domain

	// All lists every classified path, not just unlisted orphans.
	All bool
}

// Clean deletes the paths a path-domain section marks for removal. Exit
// codes follow Apply.
func (a *App) Clean(ctx context.Context, opts CleanOptions) (int, error) {
	if !opts.Domain.IsPath() {
		return ExitFailed, fmt.Errorf("%w: clean needs a path domain, got %q", types.ErrInvalidAction, opts.Domain)
	}
	m, err := a.loadManifest()
	if err != nil {
		return ExitFailed, err
	}
	section := m.PathSection(opts.Domain)

	lookup, cache, err := a.ownershipLookup(ctx)
	if err != nil {
		return ExitFailed, err
	}
	if cache != nil {
		defer cache.Close()
	}

	classes, err := a.classify(ctx, opts.Domain, section, lookup)
	if err != nil {
		return ExitFailed, err
	}
	pres := diff.PathDiff(opts.Domain, classes, section, a.Registry.Home())
	actions := planner.PlanPaths(pres, a.Registry)
	logger.Info("planned", "domain", opts.Domain, "actions", len(actions), "dry_run", opts.DryRun)

	report := &output.Report{Command: "clean"}
	if len(actions) == 0 {
		report.Paths = pres
		return ExitOK, a.render(report)
	}

	if !opts.DryRun && !opts.Yes {
		if err := a.render(&output.Report{Command: "clean", Paths: pres}); err != nil {
			return ExitFailed, err
		}
		ok, err := a.approve(ctx, fmt.Sprintf("Delete %d %s paths?", len(actions), opts.Domain), false)
		if err != nil {
			return ExitFailed, err
		}
		if !ok {
			logger.Info("clean aborted by user")
			fmt.Fprintln(a.Out, "Aborted.")
			return ExitOK, nil
		}
	} else {
		report.Plan = actions
	}

	ops := a.operators(opts.DryRun)
	code, err := a.finish(ctx, "clean", actions, ops, opts.DryRun, report)
	if cache != nil && !opts.DryRun {
		for _, r := range report.Results {
			if r.Success {
				_ = cache.Invalidate(r.Action.Name)
			}
		}
	}
	return code, err
}

// Orphans classifies discovered paths and renders the unlisted orphans, or
// every classification with All. It never deletes anything.
func (a *App) Orphans(ctx context.Context, opts OrphanOptions) ([]diff.PathClass, error) {
	domains := []types.Domain{types.DomainFilesystem, types.DomainConfigs}
	if opts.Domain != "" {
		if !opts.Domain.IsPath() {
			return nil, fmt.Errorf("%w: orphans needs a path domain, got %q", types.ErrInvalidAction, opts.Domain)
		}
		domains = []types.Domain{opts.Domain}
	}

	m, err := a.loadManifest()
	if err != nil {
		if !errors.Is(err, manifest.ErrNotFound) {
			return nil, err
		}
		m = &manifest.Manifest{}
	}

	lookup, cache, err := a.ownershipLookup(ctx)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		defer cache.Close()
	}

	var out []diff.PathClass
	for _, domain := range domains {
		section := m.PathSection(domain)
		classes, err := a.classify(ctx, domain, section, lookup)
		if err != nil {
			return nil, err
		}
		if opts.All {
			out = append(out, classes...)
			continue
		}
		out = append(out, diff.PathDiff(domain, classes, section, a.Registry.Home()).Orphans...)
	}
	return out, a.render(&output.Report{Command: "orphans", Classes: out})
}

// classify scans a path domain, adds the paths the manifest names, and
// classifies everything.
func (a *App) classify(ctx context.Context, domain types.Domain, section manifest.Section, lookup ownership.Lookup) ([]diff.PathClass, error) {
	ps, ok := a.PathScanners[domain]
	if !ok {
		return nil, fmt.Errorf("no scanner for %s", domain)
	}
	scanned, err := ps.Scan(ctx)
	if err != nil {
		return nil, err
	}
	declared := scanner.Declared(domain, a.Registry.Home(), append(section.KeepNames(), section.RemoveNames()...))
	records := scanner.Merge(scanned, declared)

	cls := &diff.HeuristicClassifier{Lookup: lookup, Now: a.now}
	if days := a.Config.Ownership.StaleDays; days > 0 {
		cls.StaleAfter = time.Duration(days) * 24 * time.Hour
	}
	return diff.ClassifyPaths(ctx, records, domain, a.Registry, cls)
}

// ownershipLookup returns the lookup for this run. The returned cache, if
// any, must be closed by the caller.
func (a *App) ownershipLookup(ctx context.Context) (ownership.Lookup, *ownership.Cache, error) {
	if a.Lookup != nil {
		return a.Lookup, nil, nil
	}

	records, err := a.packageRecords(ctx)
	if err != nil {
		return nil, nil, err
	}
	chain := ownership.Chain{}
	if _, err := a.Runner.LookPath("dpkg"); err == nil {
		chain = append(chain, ownership.NewDpkgLookup(a.Runner))
	}
	chain = append(chain, ownership.NewAppLookup(a.Runner, records))

	if !a.Config.Ownership.Cache {
		return chain, nil, nil
	}
	cache, err := ownership.OpenCache(a.Config.OwnershipCacheDir(), a.Config.Ownership.CacheTTL, chain)
	if err != nil {
		logger.Warn("ownership cache unavailable, continuing without it", "error", err)
		return chain, nil, nil
	}
	return cache, cache, nil
}

// packageRecords returns the installed packages, from a recent snapshot
// when there is one.
func (a *App) packageRecords(ctx context.Context) ([]types.Record, error) {
	if snap, err := snapshot.Load(a.Config.SnapshotPath()); err == nil && snap.Age(a.now()) < snapshotFresh {
		logger.Debug("using cached package scan", "age", snap.Age(a.now()))
		return snap.Records(), nil
	}
	records, err := a.Scanners.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	a.saveSnapshot(&diff.Result{Records: records})
	return records, nil
}
