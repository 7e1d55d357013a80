package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/tend/pkg/tend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validManifest = `
packages:
  apt:
    keep:
      git: {reason: "version control", category: dev}
      neofetch:
    remove:
      htop: {reason: "replaced by btop"}
  flatpak:
    remove:
      org.gimp.GIMP: {}
filesystem:
  remove:
    /opt/oldtool: {reason: "manual install"}
configs:
  keep:
    ~/.config/nvim: {}
  remove:
    ~/.config/some-app: {}
`

func TestParse_Valid(t *testing.T) {
	t.Parallel()

	m, err := Parse(strings.NewReader(validManifest))
	require.NoError(t, err)

	apt := m.PackageSection(types.SourceApt)
	assert.True(t, apt.Wants("git"))
	assert.True(t, apt.Wants("neofetch"))
	assert.True(t, apt.Unwanted("htop"))
	assert.Equal(t, "version control", apt.Keep["git"].Reason)
	assert.Equal(t, "dev", apt.Keep["git"].Category)
	assert.Equal(t, []string{"git", "neofetch"}, apt.KeepNames())

	assert.True(t, m.PackageSection(types.SourceFlatpak).Unwanted("org.gimp.GIMP"))
	assert.True(t, m.PackageSection(types.SourceSnap).Empty())
	assert.Equal(t, []types.Source{types.SourceApt, types.SourceFlatpak}, m.DeclaredSources())

	assert.True(t, m.PathSection(types.DomainFilesystem).Unwanted("/opt/oldtool"))
	assert.True(t, m.PathSection(types.DomainConfigs).Wants("~/.config/nvim"))
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantDup bool
	}{
		{
			name: "unknown top-level key",
			doc:  "services:\n  keep: {}\n",
		},
		{
			name: "unknown entry field",
			doc:  "packages:\n  apt:\n    keep:\n      git: {priority: 1}\n",
		},
		{
			name: "unknown section field",
			doc:  "filesystem:\n  ignore: {}\n",
		},
		{
			name: "unknown source",
			doc:  "packages:\n  brew:\n    keep:\n      git: {}\n",
		},
		{
			name:    "identity in keep and remove",
			doc:     "packages:\n  apt:\n    keep:\n      htop: {}\n    remove:\n      htop: {}\n",
			wantDup: true,
		},
		{
			name:    "path in keep and remove",
			doc:     "configs:\n  keep:\n    ~/.config/x: {}\n  remove:\n    ~/.config/x: {}\n",
			wantDup: true,
		},
		{
			name:    "path in keep and remove with a trailing slash",
			doc:     "filesystem:\n  keep:\n    /opt/tool: {}\n  remove:\n    /opt/tool/: {}\n",
			wantDup: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Nil(t, m)
			if tt.wantDup {
				assert.ErrorIs(t, err, types.ErrDuplicateEntry)
			}
		})
	}
}

func TestValidateHome_AliasedPath(t *testing.T) {
	t.Parallel()

	doc := "configs:\n  keep:\n    ~/.config/foo: {}\n  remove:\n    /home/u/.config/foo: {}\n"
	m, err := Parse(strings.NewReader(doc))
	require.NoError(t, err, "aliases are only visible once home is known")

	err = m.ValidateHome("/home/u")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrDuplicateEntry)
	assert.Contains(t, err.Error(), "kept as ~/.config/foo")

	assert.NoError(t, m.ValidateHome("/home/other"))
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()
	m, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.True(t, m.PackageSection(types.SourceApt).Empty())
}

func TestNewSection(t *testing.T) {
	t.Parallel()

	_, err := NewSection(
		map[string]Entry{"htop": {}, "git": {}},
		map[string]Entry{"htop": {}},
	)
	assert.ErrorIs(t, err, types.ErrDuplicateEntry)

	s, err := NewSection(map[string]Entry{"git": {}}, map[string]Entry{"htop": {}})
	require.NoError(t, err)
	assert.True(t, s.Listed("git"))
	assert.True(t, s.Listed("htop"))
	assert.False(t, s.Listed("vim"))
}

func TestLoadAndSave(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "manifest.yaml")

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrNotFound)

	records := []types.Record{
		{Name: "git", Domain: types.DomainPackages, Source: types.SourceApt, Status: types.StatusInstalled},
		{Name: "old", Domain: types.DomainPackages, Source: types.SourceApt, Status: types.StatusConfigFiles},
		{Name: "org.gimp.GIMP", Domain: types.DomainPackages, Source: types.SourceFlatpak},
		{Name: "/opt/x", Domain: types.DomainFilesystem},
	}
	m := FromRecords(records, "present at init")
	require.NoError(t, Save(path, m))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"git"}, loaded.PackageSection(types.SourceApt).KeepNames())
	assert.True(t, loaded.PackageSection(types.SourceFlatpak).Wants("org.gimp.GIMP"))
	assert.Equal(t, "present at init", loaded.PackageSection(types.SourceApt).Keep["git"].Reason)
	assert.True(t, loaded.Filesystem.Empty())
}
