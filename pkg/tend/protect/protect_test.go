package protect

import (
	"path/filepath"
	"testing"

	"github.com/jamesainslie/tend/pkg/tend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsProtectedPackage(t *testing.T) {
	t.Parallel()
	r := MustDefault("/home/user")

	tests := []struct {
		name string
		want bool
	}{
		{"systemd", true},
		{"SystemD", true},
		{"linux-image-6.5.0-14-generic", true},
		{"grub-efi-amd64", true},
		{"core22", true},
		{"htop", false},
		{"neofetch", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, r.IsProtectedPackage(tt.name))
		})
	}
}

func TestIsProtectedPath_HomeExpansion(t *testing.T) {
	t.Parallel()

	homes := []string{"/home/alice", "/root", "/var/lib/builder", "/", "/home/a[1]", "/home/{x}", "/home/*"}
	for _, home := range homes {
		t.Run(home, func(t *testing.T) {
			t.Parallel()
			r := MustDefault(home)

			for _, domain := range []types.Domain{types.DomainFilesystem, types.DomainConfigs} {
				assert.True(t, r.IsProtected(domain, filepath.Join(home, ".ssh", "id_rsa")),
					"%s: ~/.ssh/id_rsa must be protected", domain)
				assert.True(t, r.IsProtected(domain, "~/.ssh/id_rsa"),
					"%s: unexpanded ~/.ssh/id_rsa must be protected", domain)
				assert.True(t, r.IsProtected(domain, "~/.ssh"),
					"%s: ~/.ssh must be protected", domain)
				assert.False(t, r.IsProtected(domain, filepath.Join(home, ".config", "some-app")),
					"%s: unlisted config dir must not be protected", domain)
			}
		})
	}
}

func TestIsProtectedPath_AncestorOfProtected(t *testing.T) {
	t.Parallel()
	r := MustDefault("/home/alice")

	assert.True(t, r.IsProtected(types.DomainFilesystem, "/home/alice"))
	assert.True(t, r.IsProtected(types.DomainFilesystem, "/home"))
	assert.True(t, r.IsProtected(types.DomainFilesystem, "/etc/apt/sources.list"))
	assert.False(t, r.IsProtected(types.DomainFilesystem, "/opt/someapp"))
	assert.False(t, r.IsProtected(types.DomainFilesystem, "/home/alice/.cache/thumbnails"))
}

func TestIsProtectedPath_AncestorOfGlob(t *testing.T) {
	t.Parallel()
	r := MustDefault("/home/u")

	tests := []struct {
		domain types.Domain
		path   string
		want   bool
	}{
		{types.DomainFilesystem, "/var/lib/dpkg", true},
		{types.DomainFilesystem, "/var/lib", true},
		{types.DomainFilesystem, "/var/lib/dpkg/status", true},
		{types.DomainFilesystem, "/usr/lib", true},
		{types.DomainFilesystem, "/usr/bin", true},
		{types.DomainFilesystem, "~/.local/share/keyrings", true},
		{types.DomainFilesystem, "/home/u/.local/share", true},
		{types.DomainFilesystem, "/home/u/.local", true},
		{types.DomainFilesystem, "/var/cache/someapp", false},
		{types.DomainFilesystem, "/home/u/.local/share/someapp", false},
		{types.DomainConfigs, "~/.config/pulse", true},
		{types.DomainConfigs, "~/.config/pulse/client.conf", true},
		{types.DomainConfigs, "~/.config/user-dirs.dirs", true},
		{types.DomainConfigs, "~/.config/pulsar", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.domain)+tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, r.IsProtected(tt.domain, tt.path))
		})
	}
}

func TestIsProtectedPath_GlobOnlyExtra(t *testing.T) {
	t.Parallel()
	r, err := New("/home/u", Patterns{types.DomainFilesystem: {"/srv/*/logs", "~/vault/**", "/data/{a,b}/keep"}})
	require.NoError(t, err)

	assert.True(t, r.IsProtected(types.DomainFilesystem, "~/vault"))
	assert.True(t, r.IsProtected(types.DomainFilesystem, "/srv"))
	assert.True(t, r.IsProtected(types.DomainFilesystem, "/srv/web"))
	assert.True(t, r.IsProtected(types.DomainFilesystem, "/data/a"))
	assert.False(t, r.IsProtected(types.DomainFilesystem, "/data/c"))
	assert.False(t, r.IsProtected(types.DomainFilesystem, "/srv/web/cache"))
	assert.False(t, r.IsProtected(types.DomainFilesystem, "/home/u/other"))
}

func TestIsProtected_OrderIndependent(t *testing.T) {
	t.Parallel()

	forward := []string{"~/.cache/keep/**", "/srv/data", "~/.cache/keep/**", "/srv/*/logs"}
	backward := []string{"/srv/*/logs", "~/.cache/keep/**", "/srv/data", "~/.cache/keep/**"}

	a, err := New("/home/u", Patterns{types.DomainFilesystem: forward})
	require.NoError(t, err)
	b, err := New("/home/u", Patterns{types.DomainFilesystem: backward})
	require.NoError(t, err)

	candidates := []string{
		"/home/u/.cache/keep/x",
		"/srv/data",
		"/srv/web/logs",
		"/srv/web/logs/today",
		"/home/u/.cache/other",
	}
	for _, c := range candidates {
		assert.Equal(t, a.IsProtected(types.DomainFilesystem, c), b.IsProtected(types.DomainFilesystem, c), c)
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	t.Parallel()
	_, err := New("/home/u", Patterns{types.DomainFilesystem: {"/srv/[unclosed"}})
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	t.Parallel()
	r, err := New("/home/u", Patterns{types.DomainConfigs: {"~/.config/b/**", "~/.config/a"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"/home/u/.config/a", "~/.config/b/**"}, r.List(types.DomainConfigs))
	assert.Nil(t, r.List(types.DomainPackages))
}

func TestWithExtra(t *testing.T) {
	t.Parallel()
	p := WithExtra(Patterns{types.DomainPackages: {"docker-ce"}})
	r, err := New("/home/u", p)
	require.NoError(t, err)

	assert.True(t, r.IsProtectedPackage("docker-ce"))
	assert.True(t, r.IsProtectedPackage("systemd"))
	assert.NotContains(t, DefaultPackages, "docker-ce")
}
