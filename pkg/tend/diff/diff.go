// Package diff classifies scanned inventory against the manifest.
//
// For packages each source yields three disjoint sets: Missing (declared
// keep, not installed), Extra (declared remove, installed, not protected)
// and New (installed but unlisted). New is informational only; nothing is
// ever removed merely because the manifest does not mention it.
//
// For the filesystem and configs domains every discovered path is
// classified as ORPHAN, OWNED, PROTECTED or UNKNOWN (see ClassifyPaths).
package diff

import (
	"context"
	"fmt"
	"sort"

	"github.com/jamesainslie/tend/pkg/tend/logging"
	"github.com/jamesainslie/tend/pkg/tend/manifest"
	"github.com/jamesainslie/tend/pkg/tend/protect"
	"github.com/jamesainslie/tend/pkg/tend/scanner"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

var logger = logging.Get("diff")

// Item is one identity in a diff set.
type Item struct {
	Name    string       `json:"name" yaml:"name"`
	Source  types.Source `json:"source" yaml:"source"`
	Version string       `json:"version,omitempty" yaml:"version,omitempty"`
	Reason  string       `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// SourceDiff is the diff of one package source.
type SourceDiff struct {
	Source  types.Source `json:"source" yaml:"source"`
	Missing []Item       `json:"missing" yaml:"missing"`
	Extra   []Item       `json:"extra" yaml:"extra"`
	New     []Item       `json:"new" yaml:"new"`

	// Protected lists remove entries withheld because they are protected.
	Protected []string `json:"protected,omitempty" yaml:"protected,omitempty"`

	// Installed is the number of installed identities scanned.
	Installed int `json:"installed" yaml:"installed"`
}

// Result is the package diff across every processed source.
type Result struct {
	Sources []SourceDiff   `json:"sources" yaml:"sources"`
	Skipped []types.Source `json:"skipped,omitempty" yaml:"skipped,omitempty"`

	// Records holds every scanned record, for the snapshot cache.
	Records []types.Record `json:"-" yaml:"-"`
}

// Missing returns every missing item across sources.
func (r *Result) Missing() []Item {
	var out []Item
	for _, sd := range r.Sources {
		out = append(out, sd.Missing...)
	}
	return out
}

// Extra returns every extra item across sources.
func (r *Result) Extra() []Item {
	var out []Item
	for _, sd := range r.Sources {
		out = append(out, sd.Extra...)
	}
	return out
}

// New returns every installed-but-unlisted item across sources.
func (r *Result) New() []Item {
	var out []Item
	for _, sd := range r.Sources {
		out = append(out, sd.New...)
	}
	return out
}

// InSync reports whether nothing is missing or extra.
func (r *Result) InSync() bool {
	return len(r.Missing()) == 0 && len(r.Extra()) == 0
}

// Compute scans the selected sources and diffs them against the manifest.
//
// With a filter, only that source is processed and its unavailability is a
// hard failure. Without one, unavailable sources are skipped with a warning
// and the call fails only when no source is available. Any scan failure
// aborts the whole computation.
func Compute(ctx context.Context, set *scanner.Set, m *manifest.Manifest, reg *protect.Registry, filter *types.Source) (*Result, error) {
	selected := set.Sources()
	if filter != nil {
		if _, ok := set.Get(*filter); !ok {
			return nil, fmt.Errorf("%w: %s", types.ErrUnknownSource, *filter)
		}
		selected = []types.Source{*filter}
	}

	res := &Result{}
	for _, src := range selected {
		sc, _ := set.Get(src)
		if !sc.Available() {
			if filter != nil {
				return nil, fmt.Errorf("%w: %s", types.ErrUnavailable, src)
			}
			logger.Warn("source unavailable, skipping", "source", src)
			res.Skipped = append(res.Skipped, src)
			continue
		}

		records, err := sc.Scan(ctx)
		if err != nil {
			return nil, err
		}
		res.Records = append(res.Records, records...)
		res.Sources = append(res.Sources, diffSource(src, records, m.PackageSection(src), reg))
	}

	if len(res.Sources) == 0 {
		return nil, fmt.Errorf("%w: no package source available", types.ErrUnavailable)
	}
	return res, nil
}

// diffSource computes the diff of one source. It is pure.
func diffSource(src types.Source, records []types.Record, section manifest.Section, reg *protect.Registry) SourceDiff {
	installed := make(map[string]types.Record, len(records))
	for _, rec := range records {
		if rec.Installed() {
			installed[rec.Name] = rec
		}
	}

	sd := SourceDiff{
		Source:    src,
		Missing:   []Item{},
		Extra:     []Item{},
		New:       []Item{},
		Installed: len(installed),
	}

	for _, name := range section.KeepNames() {
		if _, ok := installed[name]; !ok {
			sd.Missing = append(sd.Missing, Item{Name: name, Source: src, Reason: section.Keep[name].Reason})
		}
	}

	for _, name := range section.RemoveNames() {
		rec, ok := installed[name]
		if !ok {
			continue
		}
		if reg.IsProtected(types.DomainPackages, name) {
			logger.Debug("withholding protected package", "source", src, "name", name)
			sd.Protected = append(sd.Protected, name)
			continue
		}
		sd.Extra = append(sd.Extra, Item{Name: name, Source: src, Version: rec.Version, Reason: section.Remove[name].Reason})
	}

	for name, rec := range installed {
		if !section.Listed(name) {
			sd.New = append(sd.New, Item{Name: name, Source: src, Version: rec.Version})
		}
	}
	sort.Slice(sd.New, func(i, j int) bool { return sd.New[i].Name < sd.New[j].Name })

	return sd
}
