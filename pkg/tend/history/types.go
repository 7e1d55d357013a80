// Package history records what tend actually did. The log is append-only:
// entries are written once and never rewritten or deleted.
package history

import (
	"time"

	"github.com/google/uuid"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

// ItemKind tags what an item identifies.
type ItemKind string

// Item kinds.
const (
	KindPackage    ItemKind = "package"
	KindPath       ItemKind = "path"
	KindConfigPath ItemKind = "config-path"
)

// Metadata keys written by tend.
const (
	MetaCommand = "command"
	MetaDomain  = "domain"
	MetaDryRun  = "dry_run"
	MetaHost    = "host"
)

// Item is one identity acted on. Source is set only for packages.
type Item struct {
	Name   string       `json:"name"`
	Kind   ItemKind     `json:"kind"`
	Source types.Source `json:"source,omitempty"`
}

// Entry is one batch of successful actions of the same kind.
type Entry struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Action     types.ActionKind  `json:"action"`
	Items      []Item            `json:"items"`
	Reversible bool              `json:"reversible"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ItemFor derives the history item of an action.
func ItemFor(a types.Action) Item {
	switch a.Domain {
	case types.DomainFilesystem:
		return Item{Name: a.Name, Kind: KindPath}
	case types.DomainConfigs:
		return Item{Name: a.Name, Kind: KindConfigPath}
	default:
		return Item{Name: a.Name, Kind: KindPackage, Source: a.Source}
	}
}

// Reversible reports whether a batch of this kind can be undone by the
// opposite package operation. Purges lose configuration and path deletions
// lose data.
func Reversible(kind types.ActionKind, domain types.Domain) bool {
	if domain.IsPath() {
		return false
	}
	return kind == types.ActionInstall || kind == types.ActionRemove
}

// NewEntry creates an entry with a fresh random ID and a UTC timestamp.
func NewEntry(kind types.ActionKind, items []Item, reversible bool, metadata map[string]string) Entry {
	return Entry{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Action:     kind,
		Items:      items,
		Reversible: reversible,
		Metadata:   metadata,
	}
}

// ShortID returns the first eight characters of the ID.
func (e Entry) ShortID() string {
	if len(e.ID) <= 8 {
		return e.ID
	}
	return e.ID[:8]
}
