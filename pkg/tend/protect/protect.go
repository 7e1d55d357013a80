// Package protect provides the protection registry: static safety patterns
// per domain that exempt resources from destructive actions regardless of
// manifest intent.
//
// The registry is consulted at two independent points, by the action planner
// and again by every destructive backend, so no action-construction path can
// bypass it.
package protect

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

// homeMarker is the leading marker expanded to the home directory.
const homeMarker = "~"

// Set is an immutable combination of exact identities and glob patterns for
// one domain.
type Set struct {
	exact    map[string]struct{}
	patterns []pattern
}

type pattern struct {
	raw string
	g   glob.Glob

	// segs holds the per-segment globs of an absolute path pattern. It is
	// used to tell whether a directory could contain a match.
	segs []segment
	// prefix is the literal directory the pattern lives under. It guards
	// patterns whose segments cannot be compiled on their own.
	prefix string
}

type segment struct {
	g    glob.Glob
	deep bool // contains "**" and may match any number of segments
}

// Registry maps domains to their protection sets. A Registry is never
// mutated after construction and is safe for concurrent use.
type Registry struct {
	home string
	sets map[types.Domain]*Set
}

// Patterns lists the raw protection patterns for each domain.
type Patterns map[types.Domain][]string

// New compiles a registry from raw patterns. Patterns without glob
// metacharacters go to the exact-match set; the rest are compiled as globs
// with '/' as separator, so '*' stays within one path segment and '**'
// crosses segments. A leading "~" is expanded to home. The choice between
// exact and glob is made on the raw pattern, and home is quoted inside
// globs, so a home containing metacharacters still matches literally.
func New(home string, patterns Patterns) (*Registry, error) {
	r := &Registry{
		home: filepath.Clean(home),
		sets: make(map[types.Domain]*Set, len(patterns)),
	}
	for domain, raws := range patterns {
		set := &Set{exact: make(map[string]struct{})}
		for _, raw := range raws {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			if !hasMeta(raw) {
				set.exact[r.normalize(domain, raw)] = struct{}{}
				continue
			}
			p, err := r.compilePattern(domain, raw)
			if err != nil {
				return nil, fmt.Errorf("compiling %s pattern %q: %w", domain, raw, err)
			}
			set.patterns = append(set.patterns, p)
		}
		r.sets[domain] = set
	}
	return r, nil
}

func (r *Registry) compilePattern(domain types.Domain, raw string) (pattern, error) {
	if !domain.IsPath() {
		g, err := glob.Compile(strings.ToLower(raw))
		return pattern{raw: raw, g: g}, err
	}

	expr := filepath.Clean(expandHome(raw, glob.QuoteMeta(r.home)))
	g, err := glob.Compile(expr, '/')
	if err != nil {
		return pattern{}, err
	}
	p := pattern{raw: raw, g: g}

	// Literal part of the raw pattern, cut back to a directory boundary.
	lit := raw[:strings.IndexAny(raw, metaChars)]
	if i := strings.LastIndex(lit, "/"); i >= 0 {
		lit = lit[:i]
		if lit == "" {
			lit = "/"
		}
		if lit == homeMarker || strings.HasPrefix(lit, homeMarker+"/") || filepath.IsAbs(lit) {
			p.prefix = filepath.Clean(expandHome(lit, r.home))
		}
	}

	if strings.HasPrefix(expr, "/") {
		segs, ok := compileSegments(expr)
		if ok {
			p.segs = segs
		}
	}
	return p, nil
}

// compileSegments splits an absolute glob into per-segment globs. It
// reports false when a segment does not compile alone, as with a brace
// alternative spanning '/'.
func compileSegments(expr string) ([]segment, bool) {
	parts := splitPath(expr)
	segs := make([]segment, 0, len(parts))
	for _, part := range parts {
		if strings.Contains(part, "**") {
			segs = append(segs, segment{deep: true})
			continue
		}
		g, err := glob.Compile(part, '/')
		if err != nil {
			return nil, false
		}
		segs = append(segs, segment{g: g})
	}
	return segs, true
}

// mayContain reports whether the pattern could match candidate itself or
// anything beneath it.
func (p pattern) mayContain(candidate string) bool {
	if candidate == "/" {
		return p.prefix != "" || p.segs != nil
	}
	if p.segs == nil {
		return p.prefix != "" &&
			(p.prefix == candidate || strings.HasPrefix(p.prefix, candidate+"/"))
	}
	for i, part := range splitPath(candidate) {
		if i >= len(p.segs) {
			return false
		}
		s := p.segs[i]
		if s.deep {
			return true
		}
		if !s.g.Match(part) {
			return false
		}
	}
	return true
}

func splitPath(p string) []string {
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

// MustDefault returns the built-in registry for the given home directory.
// It panics if the built-in patterns fail to compile.
func MustDefault(home string) *Registry {
	r, err := New(home, DefaultPatterns())
	if err != nil {
		panic(err)
	}
	return r
}

// Home returns the home directory the registry expands "~" against.
func (r *Registry) Home() string {
	return r.home
}

// IsProtected reports whether name is protected in the given domain.
// The exact set is checked first, then every glob. For path domains a path
// is also protected when a protected path, exact or matched by a glob, can
// lie beneath it, since deleting it would delete the protected path too.
func (r *Registry) IsProtected(domain types.Domain, name string) bool {
	set, ok := r.sets[domain]
	if !ok {
		return false
	}
	candidate := r.normalize(domain, name)
	if candidate == "" {
		return false
	}

	if _, ok := set.exact[candidate]; ok {
		return true
	}
	for _, p := range set.patterns {
		if p.g.Match(candidate) {
			return true
		}
	}

	if domain.IsPath() {
		prefix := strings.TrimSuffix(candidate, "/") + "/"
		for exact := range set.exact {
			if strings.HasPrefix(exact, prefix) {
				return true
			}
		}
		for _, p := range set.patterns {
			if p.mayContain(candidate) {
				return true
			}
		}
	}
	return false
}

// IsProtectedPackage reports whether a package name is protected.
func (r *Registry) IsProtectedPackage(name string) bool {
	return r.IsProtected(types.DomainPackages, name)
}

// List returns the protection entries of a domain: exact entries (sorted,
// already expanded) followed by glob patterns in declaration order.
func (r *Registry) List(domain types.Domain) []string {
	set, ok := r.sets[domain]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set.exact)+len(set.patterns))
	for e := range set.exact {
		out = append(out, e)
	}
	sort.Strings(out)
	for _, p := range set.patterns {
		out = append(out, p.raw)
	}
	return out
}

// normalize lowercases package names and expands/cleans paths.
func (r *Registry) normalize(domain types.Domain, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if !domain.IsPath() {
		return strings.ToLower(name)
	}
	return filepath.Clean(expandHome(name, r.home))
}

// expandHome replaces a leading "~" with home.
func expandHome(name, home string) string {
	if name == homeMarker || strings.HasPrefix(name, homeMarker+"/") {
		return home + name[len(homeMarker):]
	}
	return name
}

const metaChars = "*?[{"

func hasMeta(s string) bool {
	return strings.ContainsAny(s, metaChars)
}
