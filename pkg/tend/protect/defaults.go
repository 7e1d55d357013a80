package protect

import "github.com/jamesainslie/tend/pkg/tend/types"

// DefaultPackages lists packages that are never removed.
var DefaultPackages = []string{
	"apt",
	"base-files",
	"base-passwd",
	"bash",
	"coreutils",
	"dash",
	"dbus",
	"debconf",
	"dpkg",
	"e2fsprogs",
	"findutils",
	"grep",
	"gzip",
	"init",
	"libc-bin",
	"libc6",
	"login",
	"mount",
	"network-manager",
	"openssh-server",
	"passwd",
	"perl-base",
	"sed",
	"sudo",
	"systemd",
	"systemd-sysv",
	"tar",
	"udev",
	"util-linux",
	"grub*",
	"linux-image-*",
	"linux-headers-*",
	"linux-modules-*",
	"shim-signed",
	"ubuntu-minimal",
	"ubuntu-standard",
	"org.freedesktop.platform*",
	"org.gnome.platform*",
	"core",
	"core[0-9][0-9]",
	"snapd",
}

// DefaultFilesystem lists filesystem paths that are never deleted.
var DefaultFilesystem = []string{
	"/",
	"/bin",
	"/boot",
	"/dev",
	"/etc",
	"/home",
	"/lib",
	"/lib64",
	"/opt",
	"/proc",
	"/root",
	"/sbin",
	"/srv",
	"/sys",
	"/usr",
	"/var",
	"/boot/**",
	"/etc/**",
	"/usr/bin/**",
	"/usr/lib/**",
	"/var/lib/dpkg/**",
	"/var/lib/apt/**",
	"/var/lib/snapd/**",
	"~",
	"~/.ssh",
	"~/.ssh/**",
	"~/.gnupg",
	"~/.gnupg/**",
	"~/.bashrc",
	"~/.profile",
	"~/.bash_profile",
	"~/.zshrc",
	"~/.local/share/keyrings/**",
	"~/Documents",
	"~/Desktop",
	"~/Pictures",
}

// DefaultConfigs lists configuration paths that are never deleted.
var DefaultConfigs = []string{
	"~/.config",
	"~/.config/systemd",
	"~/.config/systemd/**",
	"~/.config/autostart",
	"~/.config/autostart/**",
	"~/.config/dconf",
	"~/.config/dconf/**",
	"~/.config/pulse/**",
	"~/.config/user-dirs.*",
	"~/.config/mimeapps.list",
	"~/.ssh",
	"~/.ssh/**",
	"~/.gnupg/**",
}

// DefaultPatterns returns a fresh copy of the built-in patterns.
func DefaultPatterns() Patterns {
	return Patterns{
		types.DomainPackages:   append([]string(nil), DefaultPackages...),
		types.DomainFilesystem: append([]string(nil), DefaultFilesystem...),
		types.DomainConfigs:    append([]string(nil), DefaultConfigs...),
	}
}

// WithExtra returns the default patterns extended by user-configured extras.
func WithExtra(extra Patterns) Patterns {
	p := DefaultPatterns()
	for domain, raws := range extra {
		p[domain] = append(p[domain], raws...)
	}
	return p
}
