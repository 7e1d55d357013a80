// Package config provides configuration management for tend.
package config

import "time"

// Default configuration values for tend.
const (
	// AppName names the XDG subdirectories.
	AppName = "tend"

	// DefaultManifestPath is where the desired-state manifest lives.
	DefaultManifestPath = "~/.config/tend/manifest.yaml"

	// DefaultCommandTimeout bounds every package-manager invocation.
	DefaultCommandTimeout = 10 * time.Minute

	// DefaultOwnershipTTL is how long ownership lookups stay cached.
	DefaultOwnershipTTL = 24 * time.Hour

	// DefaultStaleDays is the inactivity after which an orphan is "stale".
	DefaultStaleDays = 180

	// DefaultHistoryLimit is the number of entries `tend history` shows.
	DefaultHistoryLimit = 20
)

// DefaultFilesystemRoots are scanned for filesystem-domain candidates.
var DefaultFilesystemRoots = []string{
	"~/.local/share",
	"~/.cache",
	"/opt",
}

// DefaultConfigRoots are scanned for config-domain candidates.
var DefaultConfigRoots = []string{
	"~/.config",
}

// DefaultScanExclude lists directory names never reported as candidates.
var DefaultScanExclude = []string{
	".git",
	"lost+found",
}
