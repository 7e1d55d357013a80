// Package scanner produces inventory records for each package source and
// for the path domains. Scanners are read-only; their output is an
// order-irrelevant collection consumed by the diff engine.
package scanner

import (
	"context"
	"fmt"

	"github.com/jamesainslie/tend/pkg/tend/logging"
	"github.com/jamesainslie/tend/pkg/tend/runner"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

// logger is the package-level logger for scan operations.
var logger = logging.Get("scanner")

// Scanner produces the installed inventory of one package source.
type Scanner interface {
	// Source returns the source this scanner reads.
	Source() types.Source

	// Available reports whether the source's tooling is installed.
	Available() bool

	// Scan returns the installed records. It fails with types.ErrUnavailable
	// when the tool is missing and types.ErrScanFailed when it errors.
	Scan(ctx context.Context) ([]types.Record, error)
}

// Factory creates a scanner backed by the given runner.
type Factory func(run runner.Runner) Scanner

// factories is the closed set of supported package scanners.
var factories = map[types.Source]Factory{
	types.SourceApt:     func(run runner.Runner) Scanner { return NewApt(run) },
	types.SourceFlatpak: func(run runner.Runner) Scanner { return NewFlatpak(run) },
	types.SourceSnap:    func(run runner.Runner) Scanner { return NewSnap(run) },
}

// New creates the scanner for a source.
func New(source types.Source, run runner.Runner) (Scanner, error) {
	f, ok := factories[source]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownSource, source)
	}
	return f(run), nil
}

// Set is an explicit collection of scanners keyed by source.
type Set struct {
	scanners map[types.Source]Scanner
}

// NewSet creates a set holding the given scanners. Later scanners for the
// same source replace earlier ones.
func NewSet(scanners ...Scanner) *Set {
	s := &Set{scanners: make(map[types.Source]Scanner, len(scanners))}
	for _, sc := range scanners {
		s.scanners[sc.Source()] = sc
	}
	return s
}

// DefaultSet creates scanners for every supported source.
func DefaultSet(run runner.Runner) *Set {
	scanners := make([]Scanner, 0, len(types.Sources))
	for _, src := range types.Sources {
		scanners = append(scanners, factories[src](run))
	}
	return NewSet(scanners...)
}

// Get returns the scanner for a source.
func (s *Set) Get(source types.Source) (Scanner, bool) {
	sc, ok := s.scanners[source]
	return sc, ok
}

// Sources returns the sources in the set, in canonical order.
func (s *Set) Sources() []types.Source {
	var out []types.Source
	for _, src := range types.Sources {
		if _, ok := s.scanners[src]; ok {
			out = append(out, src)
		}
	}
	return out
}

// ScanAll scans every available source sequentially. Unavailable sources are
// skipped; the first scan failure aborts.
func (s *Set) ScanAll(ctx context.Context) ([]types.Record, error) {
	var all []types.Record
	for _, src := range s.Sources() {
		sc := s.scanners[src]
		if !sc.Available() {
			logger.Debug("source unavailable, skipping", "source", src)
			continue
		}
		recs, err := sc.Scan(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, recs...)
	}
	return all, nil
}
