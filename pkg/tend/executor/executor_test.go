package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/tend/pkg/tend/history"
	"github.com/jamesainslie/tend/pkg/tend/operator"
	"github.com/jamesainslie/tend/pkg/tend/protect"
	"github.com/jamesainslie/tend/pkg/tend/runner"
	"github.com/jamesainslie/tend/pkg/tend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func act(t *testing.T, kind types.ActionKind, src types.Source, name string) types.Action {
	t.Helper()
	a, err := types.NewAction(kind, src, name, "")
	require.NoError(t, err)
	return a
}

type failingRecorder struct{ calls int }

func (f *failingRecorder) Record(history.Entry) (history.Entry, error) {
	f.calls++
	return history.Entry{}, errors.New("disk full")
}

// misrouted claims the flatpak target but is backed by the apt operator.
type misrouted struct{ operator.Operator }

func (misrouted) Target() string { return string(types.SourceFlatpak) }

func TestExecute_RoutesBySource(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake("apt-get", "flatpak", "snap")
	ops := operator.DefaultSet(operator.Options{Runner: fake, Home: t.TempDir()})

	actions := []types.Action{
		act(t, types.ActionInstall, types.SourceApt, "git"),
		act(t, types.ActionRemove, types.SourceFlatpak, "org.gimp.GIMP"),
		act(t, types.ActionInstall, types.SourceSnap, "vlc"),
		act(t, types.ActionPurge, types.SourceApt, "nano"),
	}
	results := Execute(context.Background(), actions, ops)
	require.Len(t, results, len(actions))

	got := map[types.Action]int{}
	for _, r := range results {
		assert.True(t, r.Success, r.Error)
		got[r.Action]++
	}
	for _, a := range actions {
		assert.Equal(t, 1, got[a], a.String())
	}

	assert.ElementsMatch(t, []string{
		"apt-get install -y git",
		"apt-get purge -y nano",
		"flatpak uninstall -y --noninteractive org.gimp.GIMP",
		"snap install vlc",
	}, fake.Calls())
}

func TestExecute_UnavailableOperator(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake("apt-get")
	ops := operator.DefaultSet(operator.Options{Runner: fake, Home: t.TempDir()})

	results := Execute(context.Background(), []types.Action{
		act(t, types.ActionInstall, types.SourceSnap, "vlc"),
		act(t, types.ActionInstall, types.SourceApt, "git"),
	}, ops)
	require.Len(t, results, 2)

	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, types.ErrUnavailable.Error())
	assert.True(t, results[1].Success)
	assert.Equal(t, []string{"apt-get install -y git"}, fake.Calls())
}

func TestExecute_MissingOperator(t *testing.T) {
	t.Parallel()

	ops := operator.NewSet(operator.NewApt(operator.Options{Runner: runner.NewFake("apt-get")}))
	results := Execute(context.Background(), []types.Action{act(t, types.ActionRemove, types.SourceSnap, "vlc")}, ops)
	require.Len(t, results, 1)
	assert.True(t, results[0].Failed())
}

func TestExecute_RejectedGroupFailsEveryAction(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake("apt-get")
	ops := operator.NewSet(misrouted{operator.NewApt(operator.Options{Runner: fake})})

	actions := []types.Action{
		act(t, types.ActionRemove, types.SourceFlatpak, "org.gimp.GIMP"),
		act(t, types.ActionInstall, types.SourceFlatpak, "org.videolan.VLC"),
	}
	results := Execute(context.Background(), actions, ops)
	require.Len(t, results, 2)
	for i, r := range results {
		assert.Equal(t, actions[i], r.Action)
		assert.True(t, r.Failed())
		assert.Contains(t, r.Error, types.ErrSourceMismatch.Error())
	}
	assert.Empty(t, fake.Calls())
}

func TestExecute_PathDomains(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	stale := filepath.Join(home, ".config", "oldapp")
	require.NoError(t, os.MkdirAll(stale, 0o755))

	ops := operator.DefaultSet(operator.Options{
		Runner:   runner.NewFake(),
		Home:     home,
		Registry: protect.MustDefault(home),
	})
	a, err := types.NewPathAction(types.DomainConfigs, stale, "orphan")
	require.NoError(t, err)

	results := Execute(context.Background(), []types.Action{a}, ops)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success, results[0].Error)
	assert.NoDirExists(t, stale)
}

func TestScenarioE(t *testing.T) {
	t.Parallel()

	fake := runner.NewFake("apt-get").Fail("apt-get remove -y htop", 100, "E: dpkg was interrupted")
	ops := operator.DefaultSet(operator.Options{Runner: fake, Home: t.TempDir()})

	results := Execute(context.Background(), []types.Action{
		act(t, types.ActionInstall, types.SourceApt, "git"),
		act(t, types.ActionInstall, types.SourceApt, "curl"),
		act(t, types.ActionInstall, types.SourceApt, "zsh"),
		act(t, types.ActionRemove, types.SourceApt, "htop"),
	}, ops)
	assert.Equal(t, 1, types.CountFailures(results))

	store, err := history.Open(filepath.Join(t.TempDir(), "history.jsonl"))
	require.NoError(t, err)
	written, err := RecordHistory(store, results, "apply", nil)
	require.NoError(t, err)
	require.Len(t, written, 1)

	entries, err := store.Query(0, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.ActionInstall, entries[0].Action)
	assert.Len(t, entries[0].Items, 3)
	assert.True(t, entries[0].Reversible)
	assert.Equal(t, "apply", entries[0].Metadata[history.MetaCommand])
}

func TestRecordHistory_Partitions(t *testing.T) {
	t.Parallel()

	cfg, err := types.NewPathAction(types.DomainConfigs, "/home/u/.config/x", "")
	require.NoError(t, err)
	results := []types.ActionResult{
		types.Succeeded(act(t, types.ActionRemove, types.SourceApt, "htop"), ""),
		types.Succeeded(act(t, types.ActionPurge, types.SourceSnap, "vlc"), ""),
		types.Succeeded(cfg, ""),
		types.FailedResult(act(t, types.ActionInstall, types.SourceApt, "git"), errors.New("boom")),
	}

	store, err := history.Open(filepath.Join(t.TempDir(), "history.jsonl"))
	require.NoError(t, err)
	written, err := RecordHistory(store, results, "clean", map[string]string{history.MetaHost: "box"})
	require.NoError(t, err)
	require.Len(t, written, 3)

	byAction := map[types.ActionKind][]history.Entry{}
	for _, e := range written {
		byAction[e.Action] = append(byAction[e.Action], e)
		assert.Equal(t, "box", e.Metadata[history.MetaHost])
	}
	assert.Empty(t, byAction[types.ActionInstall])
	require.Len(t, byAction[types.ActionRemove], 2)
	require.Len(t, byAction[types.ActionPurge], 1)
	assert.False(t, byAction[types.ActionPurge][0].Reversible)

	var pathEntry history.Entry
	for _, e := range byAction[types.ActionRemove] {
		if e.Metadata[history.MetaDomain] != "" {
			pathEntry = e
		}
	}
	assert.Equal(t, string(types.DomainConfigs), pathEntry.Metadata[history.MetaDomain])
	assert.Equal(t, history.KindConfigPath, pathEntry.Items[0].Kind)
	assert.False(t, pathEntry.Reversible)
}

func TestRecordHistory_PersistenceErrorIsWarning(t *testing.T) {
	t.Parallel()

	rec := &failingRecorder{}
	results := []types.ActionResult{
		types.Succeeded(act(t, types.ActionInstall, types.SourceApt, "git"), ""),
		types.Succeeded(act(t, types.ActionRemove, types.SourceApt, "htop"), ""),
	}
	written, err := RecordHistory(rec, results, "apply", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, written)
	assert.Equal(t, 2, rec.calls, "every partition is attempted")
}

func TestRecordHistory_NothingSucceeded(t *testing.T) {
	t.Parallel()

	rec := &failingRecorder{}
	written, err := RecordHistory(rec, []types.ActionResult{
		types.FailedResult(act(t, types.ActionInstall, types.SourceApt, "git"), errors.New("x")),
	}, "apply", nil)
	require.NoError(t, err)
	assert.Empty(t, written)
	assert.Zero(t, rec.calls)
}
