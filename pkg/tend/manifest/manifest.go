package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jamesainslie/tend/pkg/tend/types"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when the manifest file does not exist.
var ErrNotFound = errors.New("manifest not found")

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates a manifest. Unknown keys at any level are
// rejected, as is any identity listed in both keep and remove of a section.
// An empty document yields an empty manifest.
func Parse(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return &Manifest{}, nil
		}
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// Save writes the manifest to path atomically using a temp file and rename.
func Save(path string, m *Manifest) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid manifest: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// FromRecords builds a manifest that keeps every installed package in the
// given records. Path records are ignored; paths must be opted in by hand.
func FromRecords(records []types.Record, reason string) *Manifest {
	m := &Manifest{Packages: make(map[types.Source]Section)}
	for _, rec := range records {
		if rec.Domain != types.DomainPackages || !rec.Installed() {
			continue
		}
		section := m.Packages[rec.Source]
		if section.Keep == nil {
			section.Keep = make(map[string]Entry)
		}
		section.Keep[rec.Name] = Entry{Reason: reason}
		m.Packages[rec.Source] = section
	}
	return m
}
