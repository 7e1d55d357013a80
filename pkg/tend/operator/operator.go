// Package operator executes planned actions against the system. Each
// operator serves one package source or one path domain; the set of
// operators is closed and built through the registry in this package.
//
// Every operator shares the same execution discipline, implemented once
// in Base:
//   - destructive actions on protected identities fail before anything
//     else, dry-run included
//   - dry-run is decided before any external process is spawned
//   - each identity is attempted independently; a failure becomes a failed
//     ActionResult and the batch continues
//   - Execute rejects the whole batch with types.ErrSourceMismatch if any
//     action targets another backend, before anything is touched
package operator

import (
	"context"
	"errors"
	"fmt"

	"github.com/jamesainslie/tend/pkg/tend/logging"
	"github.com/jamesainslie/tend/pkg/tend/protect"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

var logger = logging.Get("operator")

var (
	errProtectedPath    = errors.New("protected path")
	errProtectedPackage = errors.New("protected package")
)

// Operator is the execution contract of one backend.
type Operator interface {
	// Target is the routing key: the source for package operators, the
	// domain for path operators.
	Target() string

	// Domain returns the domain the operator serves.
	Domain() types.Domain

	// Source returns the package source, or "" for path operators.
	Source() types.Source

	// Available reports whether the backend's tooling is usable.
	Available() bool

	// SupportsPurge reports whether removal can also wipe configuration.
	SupportsPurge() bool

	// Install installs each name independently.
	Install(ctx context.Context, names []string) []types.ActionResult

	// Remove removes (or, where supported and requested, purges) each name
	// independently. Path operators delete the named paths.
	Remove(ctx context.Context, names []string, purge bool) []types.ActionResult

	// Execute validates that every action belongs to this operator, then
	// runs installs, removals and purges in that order, each group in the
	// order supplied.
	Execute(ctx context.Context, actions []types.Action) ([]types.ActionResult, error)
}

// driver performs a single action. Drivers never see dry-run actions.
type driver interface {
	available() bool
	supportsPurge() bool
	apply(ctx context.Context, a types.Action) (string, error)
}

// Base implements Operator on top of a driver.
type Base struct {
	domain types.Domain
	source types.Source
	dryRun bool
	reg    *protect.Registry
	drv    driver
}

func newBase(domain types.Domain, source types.Source, opts Options, drv driver) *Base {
	return &Base{domain: domain, source: source, dryRun: opts.DryRun, reg: registryOf(opts), drv: drv}
}

// registryOf returns the configured registry, or the built-in one.
func registryOf(opts Options) *protect.Registry {
	if opts.Registry != nil {
		return opts.Registry
	}
	return protect.MustDefault(opts.Home)
}

// Target implements Operator.
func (b *Base) Target() string {
	if b.domain.IsPath() {
		return string(b.domain)
	}
	return string(b.source)
}

// Domain implements Operator.
func (b *Base) Domain() types.Domain { return b.domain }

// Source implements Operator.
func (b *Base) Source() types.Source { return b.source }

// Available implements Operator.
func (b *Base) Available() bool { return b.drv.available() }

// SupportsPurge implements Operator.
func (b *Base) SupportsPurge() bool { return b.drv.supportsPurge() }

// DryRun reports whether the operator only simulates.
func (b *Base) DryRun() bool { return b.dryRun }

// Install implements Operator.
func (b *Base) Install(ctx context.Context, names []string) []types.ActionResult {
	if b.domain.IsPath() {
		out := make([]types.ActionResult, 0, len(names))
		for _, n := range names {
			a := types.Action{Kind: types.ActionInstall, Name: n, Domain: b.domain}
			out = append(out, types.FailedResult(a, fmt.Errorf("%w: %s does not support install", types.ErrInvalidAction, b.domain)))
		}
		return out
	}
	return b.batch(ctx, b.actions(types.ActionInstall, names))
}

// Remove implements Operator.
func (b *Base) Remove(ctx context.Context, names []string, purge bool) []types.ActionResult {
	kind := types.ActionRemove
	if purge && !b.domain.IsPath() && b.SupportsPurge() {
		kind = types.ActionPurge
	}
	return b.batch(ctx, b.actions(kind, names))
}

// Execute implements Operator.
func (b *Base) Execute(ctx context.Context, actions []types.Action) ([]types.ActionResult, error) {
	for _, a := range actions {
		if err := b.owns(a); err != nil {
			return nil, err
		}
	}

	var groups [3][]types.Action
	for _, a := range actions {
		switch a.Kind {
		case types.ActionInstall:
			groups[0] = append(groups[0], a)
		case types.ActionRemove:
			groups[1] = append(groups[1], a)
		case types.ActionPurge:
			groups[2] = append(groups[2], a)
		}
	}

	results := make([]types.ActionResult, 0, len(actions))
	for _, g := range groups {
		results = append(results, b.batch(ctx, g)...)
	}
	return results, nil
}

// owns checks that an action is routed to this operator.
func (b *Base) owns(a types.Action) error {
	if a.Domain != b.domain || a.Source != b.source {
		return fmt.Errorf("%w: %s operator given %q", types.ErrSourceMismatch, b.Target(), a.String())
	}
	if err := a.Validate(); err != nil {
		return err
	}
	return nil
}

func (b *Base) actions(kind types.ActionKind, names []string) []types.Action {
	out := make([]types.Action, 0, len(names))
	for _, n := range names {
		out = append(out, types.Action{Kind: kind, Name: n, Source: b.source, Domain: b.domain})
	}
	return out
}

// batch attempts each action independently. Results preserve order and
// carry the action exactly as given.
func (b *Base) batch(ctx context.Context, actions []types.Action) []types.ActionResult {
	results := make([]types.ActionResult, 0, len(actions))
	if len(actions) == 0 {
		return results
	}

	var available *bool
	for _, a := range actions {
		if err := b.guard(a); err != nil {
			logger.Warn("refusing action", "action", a.String(), "error", err)
			results = append(results, types.FailedResult(a, err))
			continue
		}
		if b.dryRun {
			results = append(results, types.Succeeded(a, "dry run: would "+a.String()))
			continue
		}
		if available == nil {
			ok := b.drv.available()
			available = &ok
		}
		if !*available {
			results = append(results, types.FailedResult(a, fmt.Errorf("%w: %s", types.ErrUnavailable, b.Target())))
			continue
		}
		results = append(results, b.apply(ctx, a))
	}
	return results
}

// guard fails destructive actions on protected identities. It never
// touches the system, so dry runs report what a real run would refuse.
func (b *Base) guard(a types.Action) error {
	if a.Kind == types.ActionInstall || !b.reg.IsProtected(b.domain, a.Name) {
		return nil
	}
	if b.domain.IsPath() {
		return fmt.Errorf("%w: %s", errProtectedPath, a.Name)
	}
	return fmt.Errorf("%w: %s", errProtectedPackage, a.Name)
}

func (b *Base) apply(ctx context.Context, a types.Action) types.ActionResult {
	if a.Name == "" {
		return types.FailedResult(a, fmt.Errorf("%w: empty identity", types.ErrInvalidAction))
	}
	logger.Info("executing", "action", a.Kind, "target", b.Target(), "name", a.Name)
	msg, err := b.drv.apply(ctx, a)
	if err != nil {
		logger.Warn("action failed", "action", a.String(), "error", err)
		return types.FailedResult(a, fmt.Errorf("%w: %v", types.ErrExecutionFailed, err))
	}
	return types.Succeeded(a, msg)
}
