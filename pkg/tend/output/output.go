// Package output renders tend reports in various formats (pretty, plain,
// json, yaml, paths, template).
//
// The package uses a registry pattern so commands select a formatter by
// name at runtime:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, report); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/tend/pkg/tend/diff"
	"github.com/jamesainslie/tend/pkg/tend/history"
	"github.com/jamesainslie/tend/pkg/tend/logging"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

var logger = logging.Get("output")

// Report holds what a command has to show. Nil or empty sections are not
// rendered.
type Report struct {
	// Command is the command that produced the report.
	Command string `json:"command" yaml:"command"`

	// Diff is the package diff.
	Diff *diff.Result `json:"diff,omitempty" yaml:"diff,omitempty"`

	// Paths is the diff of one path domain.
	Paths *diff.PathResult `json:"paths,omitempty" yaml:"paths,omitempty"`

	// Classes lists classified paths (the orphans report).
	Classes []diff.PathClass `json:"classes,omitempty" yaml:"classes,omitempty"`

	// Plan is the ordered list of planned actions.
	Plan []types.Action `json:"plan,omitempty" yaml:"plan,omitempty"`

	// Results are the outcomes of executed actions.
	Results []types.ActionResult `json:"results,omitempty" yaml:"results,omitempty"`

	// History lists history entries, newest first.
	History []history.Entry `json:"history,omitempty" yaml:"history,omitempty"`

	// Status summarizes the last scan.
	Status *Status `json:"status,omitempty" yaml:"status,omitempty"`

	// DryRun marks plans and results that did not touch the system.
	DryRun bool `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`

	// ScanAge is the age of the snapshot the report was built from, if any.
	ScanAge time.Duration `json:"-" yaml:"-"`

	// Warnings contains non-fatal problems, such as a failed history write.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Status describes the cached scan and the manifest it is compared with.
type Status struct {
	Host     string               `json:"host,omitempty" yaml:"host,omitempty"`
	Taken    time.Time            `json:"taken" yaml:"taken"`
	Counts   map[types.Source]int `json:"counts" yaml:"counts"`
	Skipped  []types.Source       `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Manifest string               `json:"manifest" yaml:"manifest"`
	Declared int                  `json:"declared" yaml:"declared"`
}

// Summary counts the outcome of executed actions.
type Summary struct {
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`
}

// Summary returns success and failure counts over Results.
func (r *Report) Summary() Summary {
	failed := types.CountFailures(r.Results)
	return Summary{Succeeded: len(r.Results) - failed, Failed: failed}
}

// Empty reports whether there is nothing to render.
func (r *Report) Empty() bool {
	return r.Diff == nil && r.Paths == nil && len(r.Classes) == 0 &&
		len(r.Plan) == 0 && len(r.Results) == 0 && len(r.History) == 0 &&
		r.Status == nil && len(r.Warnings) == 0
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted report to the buffer.
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry, replacing any
// existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	logger.Debug("selected formatter", "name", name)
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
