package operator

import (
	"context"
	"fmt"

	"github.com/jamesainslie/tend/pkg/tend/runner"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

// command is the argv for one package-manager verb; the identity is
// appended last.
type command []string

// packageDriver runs one package manager's commands.
type packageDriver struct {
	tool    string
	install command
	remove  command
	purge   command // nil when the manager cannot wipe configuration
	run     runner.Runner
	elevate bool
}

func (d *packageDriver) available() bool {
	_, err := d.run.LookPath(d.tool)
	return err == nil
}

func (d *packageDriver) supportsPurge() bool {
	return d.purge != nil
}

func (d *packageDriver) apply(ctx context.Context, a types.Action) (string, error) {
	var argv command
	switch a.Kind {
	case types.ActionInstall:
		argv = d.install
	case types.ActionRemove:
		argv = d.remove
	case types.ActionPurge:
		argv = d.purge
		if argv == nil {
			argv = d.remove
		}
	default:
		return "", fmt.Errorf("%w: kind %q", types.ErrInvalidAction, a.Kind)
	}

	args := append(append([]string(nil), argv[1:]...), a.Name)
	name := argv[0]
	if d.elevate {
		args = append([]string{"-n", "--preserve-env=DEBIAN_FRONTEND", name}, args...)
		name = "sudo"
	}

	out, err := d.run.Run(ctx, name, args...)
	if err != nil {
		return "", runner.Describe(out, err)
	}
	return fmt.Sprintf("%s %s", pastTense(a.Kind), a.Name), nil
}

func pastTense(k types.ActionKind) string {
	switch k {
	case types.ActionInstall:
		return "installed"
	case types.ActionPurge:
		return "purged"
	default:
		return "removed"
	}
}

// NewApt creates the apt operator.
func NewApt(opts Options) *Base {
	return newBase(types.DomainPackages, types.SourceApt, opts, &packageDriver{
		tool:    "apt-get",
		install: command{"apt-get", "install", "-y"},
		remove:  command{"apt-get", "remove", "-y"},
		purge:   command{"apt-get", "purge", "-y"},
		run:     opts.Runner,
		elevate: opts.Elevate,
	})
}

// NewFlatpak creates the flatpak operator. Purge deletes application data.
func NewFlatpak(opts Options) *Base {
	return newBase(types.DomainPackages, types.SourceFlatpak, opts, &packageDriver{
		tool:    "flatpak",
		install: command{"flatpak", "install", "-y", "--noninteractive"},
		remove:  command{"flatpak", "uninstall", "-y", "--noninteractive"},
		purge:   command{"flatpak", "uninstall", "-y", "--noninteractive", "--delete-data"},
		run:     opts.Runner,
	})
}

// NewSnap creates the snap operator. Purge skips the automatic snapshot.
func NewSnap(opts Options) *Base {
	return newBase(types.DomainPackages, types.SourceSnap, opts, &packageDriver{
		tool:    "snap",
		install: command{"snap", "install"},
		remove:  command{"snap", "remove"},
		purge:   command{"snap", "remove", "--purge"},
		run:     opts.Runner,
		elevate: opts.Elevate,
	})
}
