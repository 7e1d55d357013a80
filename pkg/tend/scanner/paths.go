package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

// PathOptions configures a path scanner.
type PathOptions struct {
	// Domain is the path domain the records belong to.
	Domain types.Domain

	// Roots are the directories whose entries are candidates. A leading "~"
	// is expanded to Home.
	Roots []string

	// Home is the home directory used for "~" expansion.
	Home string

	// Depth is the depth below each root at which entries become candidates.
	// 1 (the default) makes every direct child of a root a candidate.
	Depth int

	// Exclude lists base names that are never reported (e.g. ".git").
	Exclude []string
}

// PathScanner discovers candidate paths of a path domain. Each candidate's
// size and latest modification time aggregate everything beneath it.
type PathScanner struct {
	opts PathOptions
}

// NewPathScanner creates a path scanner.
func NewPathScanner(opts PathOptions) *PathScanner {
	if opts.Depth < 1 {
		opts.Depth = 1
	}
	return &PathScanner{opts: opts}
}

// Domain returns the scanner's domain.
func (s *PathScanner) Domain() types.Domain {
	return s.opts.Domain
}

// Scan walks every existing root and returns one record per candidate path,
// sorted by path. Missing roots are skipped; unreadable subtrees are
// tolerated.
func (s *PathScanner) Scan(ctx context.Context) ([]types.Record, error) {
	agg := &aggregator{records: make(map[string]*types.Record)}

	for _, root := range s.opts.Roots {
		root = expandHome(root, s.opts.Home)
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			logger.Debug("path root missing, skipping", "root", root)
			continue
		}
		if err := s.walk(ctx, root, agg); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]types.Record, 0, len(agg.records))
	for _, rec := range agg.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	logger.Info("path scan complete", "domain", s.opts.Domain, "records", len(out))
	return out, nil
}

func (s *PathScanner) walk(ctx context.Context, root string, agg *aggregator) error {
	conf := fastwalk.Config{Follow: false}

	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fastwalk.ErrSkipFiles
		}
		if err != nil || path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		parts := strings.Split(rel, string(filepath.Separator))
		if len(parts) < s.opts.Depth {
			return nil
		}
		if s.excluded(parts[:s.opts.Depth]) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		candidate := filepath.Join(root, filepath.Join(parts[:s.opts.Depth]...))
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		agg.add(candidate, s.opts.Domain, info, len(parts) == s.opts.Depth)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, fastwalk.ErrSkipFiles) {
		return err
	}
	return nil
}

func (s *PathScanner) excluded(parts []string) bool {
	for _, p := range parts {
		for _, ex := range s.opts.Exclude {
			if p == ex {
				return true
			}
		}
	}
	return false
}

// aggregator folds walk entries into candidate records. fastwalk invokes
// the callback concurrently.
type aggregator struct {
	mu      sync.Mutex
	records map[string]*types.Record
}

func (a *aggregator) add(candidate string, domain types.Domain, info fs.FileInfo, self bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.records[candidate]
	if !ok {
		rec = &types.Record{Name: candidate, Domain: domain, Status: "present"}
		a.records[candidate] = rec
	}
	if info.Mode().IsRegular() {
		rec.Size += info.Size()
	}
	if info.ModTime().After(rec.ModTime) {
		rec.ModTime = info.ModTime()
	}
	if self && info.Mode()&fs.ModeSymlink != 0 {
		rec.Status = "symlink"
	}
}

func expandHome(path, home string) string {
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// Declared returns records for the given paths that exist, so paths named in
// the manifest are classified even when they lie outside the scan roots.
// Symlinks are not followed.
func Declared(domain types.Domain, home string, paths []string) []types.Record {
	var out []types.Record
	for _, p := range paths {
		path := filepath.Clean(expandHome(p, home))
		info, err := os.Lstat(path)
		if err != nil {
			continue
		}
		rec := types.Record{Name: path, Domain: domain, Status: "present", ModTime: info.ModTime()}
		if info.Mode().IsRegular() {
			rec.Size = info.Size()
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			rec.Status = "symlink"
		}
		out = append(out, rec)
	}
	return out
}

// Merge combines record sets, keeping the first record per name.
func Merge(sets ...[]types.Record) []types.Record {
	seen := make(map[string]bool)
	var out []types.Record
	for _, set := range sets {
		for _, rec := range set {
			if seen[rec.Name] {
				continue
			}
			seen[rec.Name] = true
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
