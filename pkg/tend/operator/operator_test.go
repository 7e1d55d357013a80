package operator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/tend/pkg/tend/protect"
	"github.com/jamesainslie/tend/pkg/tend/runner"
	"github.com/jamesainslie/tend/pkg/tend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAction(t *testing.T, kind types.ActionKind, src types.Source, name string) types.Action {
	t.Helper()
	a, err := types.NewAction(kind, src, name, "")
	require.NoError(t, err)
	return a
}

func TestExecute_ScenarioD(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake("apt-get")
	op := NewApt(Options{Runner: fake})

	actions := []types.Action{
		mustAction(t, types.ActionInstall, types.SourceApt, "git"),
		mustAction(t, types.ActionRemove, types.SourceFlatpak, "org.gimp.GIMP"),
	}
	results, err := op.Execute(context.Background(), actions)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrSourceMismatch))
	assert.Nil(t, results)
	assert.Empty(t, fake.Calls(), "nothing may run after a mismatch")
}

func TestExecute_PathActionOnPackageOperator(t *testing.T) {
	t.Parallel()

	a, err := types.NewPathAction(types.DomainConfigs, "/home/u/.config/x", "")
	require.NoError(t, err)

	_, err = NewSnap(Options{Runner: runner.NewFake("snap")}).Execute(context.Background(), []types.Action{a})
	assert.True(t, errors.Is(err, types.ErrSourceMismatch))
}

func TestExecute_GroupsByKind(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake("apt-get")
	op := NewApt(Options{Runner: fake})

	actions := []types.Action{
		mustAction(t, types.ActionPurge, types.SourceApt, "nano"),
		mustAction(t, types.ActionRemove, types.SourceApt, "htop"),
		mustAction(t, types.ActionInstall, types.SourceApt, "zsh"),
		mustAction(t, types.ActionInstall, types.SourceApt, "git"),
	}
	results, err := op.Execute(context.Background(), actions)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, []string{
		"apt-get install -y zsh",
		"apt-get install -y git",
		"apt-get remove -y htop",
		"apt-get purge -y nano",
	}, fake.Calls())

	// Results carry the exact input actions.
	got := map[types.Action]int{}
	for _, r := range results {
		got[r.Action]++
		assert.True(t, r.Success)
	}
	for _, a := range actions {
		assert.Equal(t, 1, got[a], a.String())
	}
}

func TestBatch_FailureIsolation(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake("apt-get").
		Fail("apt-get install -y broken", 100, "E: Unable to locate package broken").
		On("apt-get install -y slow", runner.Output{ExitCode: -1},
			fmt.Errorf("%w after 10m0s: apt-get install -y slow", runner.ErrTimeout))

	results := NewApt(Options{Runner: fake}).Install(context.Background(), []string{"git", "broken", "slow", "curl"})
	require.Len(t, results, 4)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "Unable to locate package broken")
	assert.False(t, results[2].Success)
	assert.Contains(t, results[2].Error, "timed out")
	assert.True(t, results[3].Success)
	assert.Len(t, fake.Calls(), 4)
	assert.Equal(t, 2, types.CountFailures(results))
}

func TestDryRun_SpawnsNothing(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake("apt-get", "flatpak", "snap")
	home := t.TempDir()
	target := filepath.Join(home, ".config", "keepme")
	require.NoError(t, os.MkdirAll(target, 0o755))

	opts := Options{Runner: fake, DryRun: true, Home: home, Registry: protect.MustDefault(home)}
	for _, op := range DefaultSet(opts).All() {
		var results []types.ActionResult
		if op.Domain().IsPath() {
			results = op.Remove(context.Background(), []string{target}, false)
		} else {
			results = append(op.Install(context.Background(), []string{"a"}),
				op.Remove(context.Background(), []string{"b"}, true)...)
		}
		for _, r := range results {
			assert.True(t, r.Success, op.Target())
			assert.Contains(t, r.Message, "dry run")
		}
	}
	assert.Empty(t, fake.Calls())
	assert.DirExists(t, target)
}

func TestRemove_Purge(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake("flatpak", "snap")
	NewFlatpak(Options{Runner: fake}).Remove(context.Background(), []string{"org.gimp.GIMP"}, true)
	NewSnap(Options{Runner: fake}).Remove(context.Background(), []string{"vlc"}, false)

	assert.Equal(t, []string{
		"flatpak uninstall -y --noninteractive --delete-data org.gimp.GIMP",
		"snap remove vlc",
	}, fake.Calls())
}

func TestElevate(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake("apt-get")
	NewApt(Options{Runner: fake, Elevate: true}).Remove(context.Background(), []string{"htop"}, false)
	assert.Equal(t, []string{"sudo -n --preserve-env=DEBIAN_FRONTEND apt-get remove -y htop"}, fake.Calls())
}

func TestUnavailable(t *testing.T) {
	t.Parallel()

	results := NewSnap(Options{Runner: runner.NewFake()}).Install(context.Background(), []string{"vlc"})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, types.ErrUnavailable.Error())
}

func TestPathBackend(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	system := t.TempDir()
	reg := protect.MustDefault(home)
	fake := runner.NewFake()

	userDir := filepath.Join(home, ".local", "share", "zed")
	userFile := filepath.Join(home, ".local", "share", "stray.db")
	link := filepath.Join(home, ".local", "share", "link")
	sysDir := filepath.Join(system, "oldvendor")
	require.NoError(t, os.MkdirAll(filepath.Join(userDir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(userFile, []byte("x"), 0o644))
	require.NoError(t, os.Symlink(userDir, link))
	require.NoError(t, os.MkdirAll(sysDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ssh"), 0o700))

	op := NewPathBackend(Options{Runner: fake, Registry: reg, Home: home, Elevate: true})
	results := op.Remove(context.Background(), []string{
		link,
		userDir,
		userFile,
		filepath.Join(home, ".ssh"),
		filepath.Join(home, "gone"),
		sysDir,
	}, true)
	require.Len(t, results, 6)

	assert.True(t, results[0].Success, results[0].Error)
	assert.True(t, results[1].Success, results[1].Error)
	assert.True(t, results[2].Success, results[2].Error)
	assert.NoFileExists(t, userFile)
	assert.NoDirExists(t, userDir)
	_, err := os.Lstat(link)
	assert.True(t, os.IsNotExist(err))

	assert.False(t, results[3].Success)
	assert.Contains(t, results[3].Error, "protected path")
	assert.DirExists(t, filepath.Join(home, ".ssh"))

	assert.False(t, results[4].Success)
	assert.Contains(t, results[4].Error, "does not exist")

	assert.True(t, results[5].Success, results[5].Error)
	assert.Equal(t, []string{"sudo -n rm -rf -- " + sysDir}, fake.Calls())

	for _, r := range results {
		assert.Equal(t, types.DomainFilesystem, r.Action.Domain)
		assert.Equal(t, types.ActionRemove, r.Action.Kind)
	}
}

func TestPathBackend_ProtectedGlobRoot(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	keyrings := filepath.Join(home, ".local", "share", "keyrings")
	require.NoError(t, os.MkdirAll(keyrings, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(keyrings, "login.keyring"), []byte("x"), 0o600))
	fake := runner.NewFake()

	a, err := types.NewPathAction(types.DomainFilesystem, keyrings, "")
	require.NoError(t, err)
	results, err := NewPathBackend(Options{Runner: fake, Registry: protect.MustDefault(home), Home: home}).
		Execute(context.Background(), []types.Action{a})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "protected path")
	assert.FileExists(t, filepath.Join(keyrings, "login.keyring"))
	assert.Empty(t, fake.Calls())
}

func TestPackageOperator_RefusesProtected(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake("apt-get")
	op := NewApt(Options{Runner: fake, Registry: protect.MustDefault("/home/u")})

	results, err := op.Execute(context.Background(), []types.Action{
		mustAction(t, types.ActionRemove, types.SourceApt, "systemd"),
		mustAction(t, types.ActionPurge, types.SourceApt, "linux-image-6.5.0-14-generic"),
		mustAction(t, types.ActionRemove, types.SourceApt, "htop"),
		mustAction(t, types.ActionInstall, types.SourceApt, "sudo"),
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	byName := map[string]types.ActionResult{}
	for _, r := range results {
		byName[r.Action.Name] = r
	}
	assert.False(t, byName["systemd"].Success)
	assert.Contains(t, byName["systemd"].Error, "protected package")
	assert.False(t, byName["linux-image-6.5.0-14-generic"].Success)
	assert.True(t, byName["htop"].Success)
	assert.True(t, byName["sudo"].Success, "installs are never refused")
	assert.Equal(t, []string{"apt-get install -y sudo", "apt-get remove -y htop"}, fake.Calls())
}

func TestPackageOperator_DefaultRegistry(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake("snap")
	results := NewSnap(Options{Runner: fake}).Remove(context.Background(), []string{"snapd"}, false)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Empty(t, fake.Calls())
}

func TestDryRun_ReportsProtected(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	opts := Options{Runner: runner.NewFake("apt-get"), DryRun: true, Home: home, Registry: protect.MustDefault(home)}

	paths := NewConfigBackend(opts).Remove(context.Background(), []string{
		filepath.Join(home, ".ssh"),
		filepath.Join(home, ".config", "oldapp"),
	}, false)
	require.Len(t, paths, 2)
	assert.False(t, paths[0].Success)
	assert.Contains(t, paths[0].Error, "protected path")
	assert.True(t, paths[1].Success)
	assert.Contains(t, paths[1].Message, "dry run")

	pkgs := NewApt(opts).Remove(context.Background(), []string{"dpkg"}, false)
	require.Len(t, pkgs, 1)
	assert.False(t, pkgs[0].Success)
	assert.Contains(t, pkgs[0].Error, "protected package")
}

func TestConfigBackend_Trash(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	target := filepath.Join(home, ".config", "oldapp")
	require.NoError(t, os.MkdirAll(target, 0o755))

	fake := runner.NewFake("gio")
	op := NewConfigBackend(Options{Runner: fake, Registry: protect.MustDefault(home), Home: home, UseTrash: true})

	a, err := types.NewPathAction(types.DomainConfigs, target, "orphan")
	require.NoError(t, err)
	results, err := op.Execute(context.Background(), []types.Action{a})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Contains(t, results[0].Message, "trash")
	assert.Equal(t, []string{"gio trash " + target}, fake.Calls())
}

func TestPathBackend_RejectsInstall(t *testing.T) {
	t.Parallel()

	op := NewPathBackend(Options{Runner: runner.NewFake(), Home: "/home/u"})
	results := op.Install(context.Background(), []string{"/opt/x"})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	opts := Options{Runner: runner.NewFake("apt-get"), Home: "/home/u"}
	for _, target := range []string{"apt", "flatpak", "snap", "filesystem", "configs"} {
		op, err := New(target, opts)
		require.NoError(t, err)
		assert.Equal(t, target, op.Target())
	}
	_, err := New("brew", opts)
	assert.True(t, errors.Is(err, types.ErrUnknownSource))

	set := DefaultSet(opts)
	assert.Len(t, set.All(), 5)
	assert.True(t, set.SupportsPurge(types.SourceApt))
	assert.True(t, set.Available("apt"))
	assert.False(t, set.Available("snap"))
	assert.True(t, set.Available("configs"))
}
