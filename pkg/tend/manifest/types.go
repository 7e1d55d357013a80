// Package manifest loads and validates the desired-state manifest: per
// domain, the identities to keep and the identities to remove.
package manifest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jamesainslie/tend/pkg/tend/types"
)

// Entry annotates one manifest identity.
type Entry struct {
	Reason   string `yaml:"reason,omitempty" json:"reason,omitempty"`
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
}

// Section holds the keep and remove sets of one domain (or one package
// source). The key sets are disjoint.
type Section struct {
	Keep   map[string]Entry `yaml:"keep,omitempty" json:"keep,omitempty"`
	Remove map[string]Entry `yaml:"remove,omitempty" json:"remove,omitempty"`
}

// NewSection builds a validated section. It fails with
// types.ErrDuplicateEntry when an identity appears in both keep and remove.
func NewSection(keep, remove map[string]Entry) (Section, error) {
	s := Section{Keep: copyEntries(keep), Remove: copyEntries(remove)}
	if err := s.validate(); err != nil {
		return Section{}, err
	}
	return s, nil
}

// Wants reports whether name is declared desired.
func (s Section) Wants(name string) bool {
	_, ok := s.Keep[name]
	return ok
}

// Unwanted reports whether name is declared for removal.
func (s Section) Unwanted(name string) bool {
	_, ok := s.Remove[name]
	return ok
}

// Listed reports whether name appears in either set.
func (s Section) Listed(name string) bool {
	return s.Wants(name) || s.Unwanted(name)
}

// KeepNames returns the keep identities sorted.
func (s Section) KeepNames() []string {
	return sortedKeys(s.Keep)
}

// RemoveNames returns the remove identities sorted.
func (s Section) RemoveNames() []string {
	return sortedKeys(s.Remove)
}

// Empty reports whether the section declares nothing.
func (s Section) Empty() bool {
	return len(s.Keep) == 0 && len(s.Remove) == 0
}

func (s Section) validate() error {
	for name := range s.Keep {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("keep: empty identity")
		}
	}
	var dups []string
	for name := range s.Remove {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("remove: empty identity")
		}
		if _, ok := s.Keep[name]; ok {
			dups = append(dups, name)
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return fmt.Errorf("%w: %s", types.ErrDuplicateEntry, strings.Join(dups, ", "))
	}
	return nil
}

// validatePaths is validate for path sections: keys are compared after
// cleaning and, when home is set, after expanding a leading "~", so two
// spellings of one path cannot sit in both keep and remove.
func (s Section) validatePaths(home string) error {
	if err := s.validate(); err != nil {
		return err
	}
	keep := make(map[string]string, len(s.Keep))
	for name := range s.Keep {
		keep[expandPath(name, home)] = name
	}
	var dups []string
	for name := range s.Remove {
		if kept, ok := keep[expandPath(name, home)]; ok {
			dups = append(dups, fmt.Sprintf("%s (kept as %s)", name, kept))
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return fmt.Errorf("%w: %s", types.ErrDuplicateEntry, strings.Join(dups, ", "))
	}
	return nil
}

// expandPath cleans a path key, expanding a leading "~" when home is set.
func expandPath(name, home string) string {
	name = strings.TrimSpace(name)
	if home != "" {
		switch {
		case name == "~":
			name = home
		case strings.HasPrefix(name, "~/"):
			name = filepath.Join(home, name[2:])
		}
	}
	return filepath.Clean(name)
}

// Manifest is the validated desired state of a machine.
type Manifest struct {
	Packages   map[types.Source]Section `yaml:"packages,omitempty" json:"packages,omitempty"`
	Filesystem Section                  `yaml:"filesystem,omitempty" json:"filesystem,omitempty"`
	Configs    Section                  `yaml:"configs,omitempty" json:"configs,omitempty"`
}

// PackageSection returns the section for a package source; an undeclared
// source yields an empty section.
func (m *Manifest) PackageSection(source types.Source) Section {
	if m == nil || m.Packages == nil {
		return Section{}
	}
	return m.Packages[source]
}

// PathSection returns the section for a path domain.
func (m *Manifest) PathSection(domain types.Domain) Section {
	if m == nil {
		return Section{}
	}
	switch domain {
	case types.DomainFilesystem:
		return m.Filesystem
	case types.DomainConfigs:
		return m.Configs
	default:
		return Section{}
	}
}

// DeclaredSources returns the package sources that have a section, in the
// canonical source order.
func (m *Manifest) DeclaredSources() []types.Source {
	var out []types.Source
	for _, src := range types.Sources {
		if _, ok := m.Packages[src]; ok {
			out = append(out, src)
		}
	}
	return out
}

// Validate checks every section and every source key.
func (m *Manifest) Validate() error {
	for src, section := range m.Packages {
		if _, err := types.ParseSource(string(src)); err != nil {
			return fmt.Errorf("packages: %w", err)
		}
		if err := section.validate(); err != nil {
			return fmt.Errorf("packages.%s: %w", src, err)
		}
	}
	return m.validatePaths("")
}

// ValidateHome checks the path sections again with "~" expanded against
// home, rejecting a path kept under one spelling and removed under another.
func (m *Manifest) ValidateHome(home string) error {
	return m.validatePaths(home)
}

func (m *Manifest) validatePaths(home string) error {
	if err := m.Filesystem.validatePaths(home); err != nil {
		return fmt.Errorf("filesystem: %w", err)
	}
	if err := m.Configs.validatePaths(home); err != nil {
		return fmt.Errorf("configs: %w", err)
	}
	return nil
}

func copyEntries(in map[string]Entry) map[string]Entry {
	out := make(map[string]Entry, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
