// Package types provides the core data types shared by the tend reconciliation
// pipeline: inventory records, planned actions, action results, and the typed
// error kinds returned across package boundaries.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Domain identifies a reconciliation domain.
type Domain string

// Supported domains.
const (
	// DomainPackages covers system package managers (apt, flatpak, snap).
	DomainPackages Domain = "packages"
	// DomainFilesystem covers arbitrary filesystem paths.
	DomainFilesystem Domain = "filesystem"
	// DomainConfigs covers per-user configuration paths.
	DomainConfigs Domain = "configs"
)

// IsPath reports whether the domain is a path domain (filesystem or configs).
func (d Domain) IsPath() bool {
	return d == DomainFilesystem || d == DomainConfigs
}

// ParseDomain parses a domain name (case-insensitive).
func ParseDomain(s string) (Domain, error) {
	switch Domain(strings.ToLower(strings.TrimSpace(s))) {
	case DomainPackages:
		return DomainPackages, nil
	case DomainFilesystem:
		return DomainFilesystem, nil
	case DomainConfigs:
		return DomainConfigs, nil
	default:
		return "", fmt.Errorf("unknown domain %q", s)
	}
}

// Source identifies a package source. Path domains use the empty source.
type Source string

// Supported package sources.
const (
	SourceApt     Source = "apt"
	SourceFlatpak Source = "flatpak"
	SourceSnap    Source = "snap"
)

// Sources lists every package source in a stable order.
var Sources = []Source{SourceApt, SourceFlatpak, SourceSnap}

// ParseSource parses a source name (case-insensitive).
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceApt:
		return SourceApt, nil
	case SourceFlatpak:
		return SourceFlatpak, nil
	case SourceSnap:
		return SourceSnap, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
	}
}

// Record is a normalized fact about one installed package or discovered path.
// Records are produced fresh by each scan and never persisted by the core.
type Record struct {
	// Name is the package name or the absolute path.
	Name string `json:"name" yaml:"name"`

	// Domain is the domain the record belongs to.
	Domain Domain `json:"domain" yaml:"domain"`

	// Source is the package source; empty for path domains.
	Source Source `json:"source,omitempty" yaml:"source,omitempty"`

	// Version is the installed version, if known.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Status is the installation status reported by the package tool
	// (e.g. "installed", "config-files").
	Status string `json:"status,omitempty" yaml:"status,omitempty"`

	// Size is the size in bytes, if known.
	Size int64 `json:"size,omitempty" yaml:"size,omitempty"`

	// ModTime is the last modification time of a path record.
	ModTime time.Time `json:"mod_time,omitempty" yaml:"mod_time,omitempty"`

	// Description is an optional human-readable summary.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Installed reports whether the record describes a fully installed package.
// Path records are always considered present.
func (r Record) Installed() bool {
	if r.Domain.IsPath() {
		return true
	}
	return r.Status == "" || r.Status == StatusInstalled
}

// Package status values reported by scanners.
const (
	StatusInstalled   = "installed"
	StatusConfigFiles = "config-files"
)

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
