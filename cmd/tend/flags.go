package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jamesainslie/tend/pkg/tend/types"
)

// Output flags shared by every command.
var (
	outputFormat string
	templateStr  string
)

// parseSourceFlag parses an optional --source value. Empty means all sources.
func parseSourceFlag(s string) (*types.Source, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	src, err := types.ParseSource(s)
	if err != nil {
		return nil, fmt.Errorf("invalid --source %q: %w", s, err)
	}
	return &src, nil
}

// parsePathDomain parses a --domain value that must name a path domain.
// Empty is allowed only when allowAll is set.
func parsePathDomain(s string, allowAll bool) (types.Domain, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if allowAll {
			return "", nil
		}
		return "", fmt.Errorf("--domain is required (%s or %s)", types.DomainFilesystem, types.DomainConfigs)
	}
	d, err := types.ParseDomain(s)
	if err != nil {
		return "", fmt.Errorf("invalid --domain %q: %w", s, err)
	}
	if !d.IsPath() {
		return "", fmt.Errorf("invalid --domain %q: must be %s or %s", s, types.DomainFilesystem, types.DomainConfigs)
	}
	return d, nil
}

// parseSince parses a --since value relative to now. It accepts Go
// durations ("36h"), day counts ("7d"), dates ("2006-01-02") and RFC 3339
// timestamps.
func parseSince(s string, now time.Time) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if strings.HasSuffix(s, "d") {
		if days, err := strconv.Atoi(strings.TrimSuffix(s, "d")); err == nil && days >= 0 {
			t := now.AddDate(0, 0, -days)
			return &t, nil
		}
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		t := now.Add(-d)
		return &t, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid --since %q: use a duration (36h, 7d), a date (2006-01-02) or RFC 3339", s)
}
