package operator

import (
	"fmt"
	"os"

	"github.com/jamesainslie/tend/pkg/tend/protect"
	"github.com/jamesainslie/tend/pkg/tend/runner"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

// Options configures operator construction.
type Options struct {
	// Runner executes external tools.
	Runner runner.Runner

	// DryRun makes every operation report success without touching the
	// system.
	DryRun bool

	// Elevate runs privileged commands through `sudo -n`.
	Elevate bool

	// Registry is the protection registry consulted before every removal.
	// Nil uses the built-in registry for Home.
	Registry *protect.Registry

	// Home is the user's home directory; paths beneath it are user paths.
	Home string

	// UseTrash moves user paths to the trash instead of deleting them.
	UseTrash bool
}

// DefaultOptions returns options for the local host. Elevation is enabled
// when not running as root.
func DefaultOptions(run runner.Runner, reg *protect.Registry) Options {
	return Options{
		Runner:   run,
		Elevate:  os.Geteuid() != 0,
		Registry: reg,
		Home:     reg.Home(),
	}
}

// Factory creates an operator.
type Factory func(opts Options) Operator

// factories is the closed set of operators keyed by routing target.
var factories = map[string]Factory{
	string(types.SourceApt):        func(o Options) Operator { return NewApt(o) },
	string(types.SourceFlatpak):    func(o Options) Operator { return NewFlatpak(o) },
	string(types.SourceSnap):       func(o Options) Operator { return NewSnap(o) },
	string(types.DomainFilesystem): func(o Options) Operator { return NewPathBackend(o) },
	string(types.DomainConfigs):    func(o Options) Operator { return NewConfigBackend(o) },
}

// targets lists the factory keys in canonical order.
var targets = []string{
	string(types.SourceApt),
	string(types.SourceFlatpak),
	string(types.SourceSnap),
	string(types.DomainFilesystem),
	string(types.DomainConfigs),
}

// New creates the operator for a target (a source or a path domain).
func New(target string, opts Options) (Operator, error) {
	f, ok := factories[target]
	if !ok {
		return nil, fmt.Errorf("%w: no operator for %q", types.ErrUnknownSource, target)
	}
	return f(opts), nil
}

// Set is an explicit collection of operators keyed by target.
type Set struct {
	ops map[string]Operator
}

// NewSet creates a set; later operators for the same target win.
func NewSet(ops ...Operator) *Set {
	s := &Set{ops: make(map[string]Operator, len(ops))}
	for _, op := range ops {
		s.ops[op.Target()] = op
	}
	return s
}

// DefaultSet creates every operator with the same options.
func DefaultSet(opts Options) *Set {
	ops := make([]Operator, 0, len(targets))
	for _, t := range targets {
		ops = append(ops, factories[t](opts))
	}
	return NewSet(ops...)
}

// Get returns the operator for a target.
func (s *Set) Get(target string) (Operator, bool) {
	op, ok := s.ops[target]
	return op, ok
}

// All returns the operators in canonical target order.
func (s *Set) All() []Operator {
	var out []Operator
	for _, t := range targets {
		if op, ok := s.ops[t]; ok {
			out = append(out, op)
		}
	}
	for t, op := range s.ops {
		if _, known := factories[t]; !known {
			out = append(out, op)
		}
	}
	return out
}

// SupportsPurge reports whether the source's operator can purge.
func (s *Set) SupportsPurge(source types.Source) bool {
	op, ok := s.ops[string(source)]
	return ok && op.SupportsPurge()
}

// Available reports whether the target's operator exists and is usable.
func (s *Set) Available(target string) bool {
	op, ok := s.ops[target]
	return ok && op.Available()
}
