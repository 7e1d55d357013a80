package operator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/tend/pkg/tend/runner"
	"github.com/jamesainslie/tend/pkg/tend/trash"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

var errPathMissing = errors.New("does not exist")

// pathDriver deletes paths of one domain. Paths inside the home directory
// are removed directly (or trashed); anything else needs elevation.
// Protection is enforced by Base before the driver is reached.
type pathDriver struct {
	domain  types.Domain
	home    string
	run     runner.Runner
	trasher *trash.Trasher
	elevate bool
}

func (d *pathDriver) available() bool   { return true }
func (d *pathDriver) supportsPurge() bool { return false }

func (d *pathDriver) apply(ctx context.Context, a types.Action) (string, error) {
	if a.Kind != types.ActionRemove {
		return "", fmt.Errorf("%w: %s supports only %s", types.ErrInvalidAction, d.domain, types.ActionRemove)
	}
	path := filepath.Clean(a.Name)
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %q is not absolute", types.ErrInvalidAction, a.Name)
	}

	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s %w", path, errPathMissing)
		}
		return "", err
	}
	dir := info.IsDir()

	if !d.userPath(path) {
		return d.privileged(ctx, path, dir)
	}

	if d.trasher != nil {
		trashed, err := d.trasher.Move(ctx, path)
		if err != nil {
			return "", err
		}
		if trashed {
			return "moved to trash " + path, nil
		}
		return "deleted " + path + " (no trash available)", nil
	}

	if dir {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return "", err
	}
	return "deleted " + path, nil
}

// privileged removes a system path, through sudo unless already root.
func (d *pathDriver) privileged(ctx context.Context, path string, dir bool) (string, error) {
	flags := "-f"
	if dir {
		flags = "-rf"
	}
	name, args := "rm", []string{flags, "--", path}
	if d.elevate {
		name, args = "sudo", append([]string{"-n", "rm"}, args...)
	}
	out, err := d.run.Run(ctx, name, args...)
	if err != nil {
		return "", runner.Describe(out, err)
	}
	return "deleted " + path, nil
}

func (d *pathDriver) userPath(path string) bool {
	if d.home == "" || d.home == "/" {
		return false
	}
	return strings.HasPrefix(path, strings.TrimSuffix(d.home, "/")+"/")
}

func newPathOperator(domain types.Domain, opts Options) *Base {
	drv := &pathDriver{
		domain:  domain,
		home:    opts.Home,
		run:     opts.Runner,
		elevate: opts.Elevate,
	}
	if opts.UseTrash {
		drv.trasher = trash.New(opts.Runner)
	}
	return newBase(domain, "", opts, drv)
}

// NewPathBackend creates the filesystem-domain deletion backend.
func NewPathBackend(opts Options) *Base {
	return newPathOperator(types.DomainFilesystem, opts)
}

// NewConfigBackend creates the configs-domain deletion backend.
func NewConfigBackend(opts Options) *Base {
	return newPathOperator(types.DomainConfigs, opts)
}
