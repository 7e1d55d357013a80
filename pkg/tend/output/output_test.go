package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jamesainslie/tend/pkg/tend/diff"
	"github.com/jamesainslie/tend/pkg/tend/history"
	"github.com/jamesainslie/tend/pkg/tend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleReport(t *testing.T) *Report {
	t.Helper()

	install, err := types.NewAction(types.ActionInstall, types.SourceApt, "neofetch", "declared in manifest")
	require.NoError(t, err)
	remove, err := types.NewAction(types.ActionRemove, types.SourceApt, "htop", "marked for removal")
	require.NoError(t, err)

	return &Report{
		Command: "apply",
		Diff: &diff.Result{
			Sources: []diff.SourceDiff{{
				Source:    types.SourceApt,
				Missing:   []diff.Item{{Name: "neofetch", Source: types.SourceApt}},
				Extra:     []diff.Item{{Name: "htop", Source: types.SourceApt}},
				New:       []diff.Item{{Name: "cowsay", Source: types.SourceApt}},
				Protected: []string{"systemd"},
				Installed: 3,
			}},
			Skipped: []types.Source{types.SourceSnap},
		},
		Plan: []types.Action{install, remove},
		Results: []types.ActionResult{
			types.Succeeded(install, ""),
			types.FailedResult(remove, errors.New("E: Could not get lock\nsecond line")),
		},
		Warnings: []string{"history not recorded"},
	}
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"pretty", "plain", "json", "yaml", "paths", "template"} {
		f, err := Get(name)
		require.NoError(t, err, name)
		assert.NotNil(t, f)
	}
	_, err := Get("xml")
	assert.Error(t, err)

	r := NewRegistry()
	r.Register("b", func() Formatter { return &PathsFormatter{} })
	r.Register("a", func() Formatter { return &PathsFormatter{} })
	assert.Equal(t, []string{"a", "b"}, r.Available())
}

func TestReport_SummaryAndEmpty(t *testing.T) {
	r := sampleReport(t)
	assert.Equal(t, Summary{Succeeded: 1, Failed: 1}, r.Summary())
	assert.False(t, r.Empty())
	assert.True(t, (&Report{Command: "diff"}).Empty())
}

func TestPrettyFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, sampleReport(t)))
	out := buf.String()

	assert.Contains(t, out, "neofetch")
	assert.Contains(t, out, "htop")
	assert.Contains(t, out, "systemd")
	assert.Contains(t, out, "1 installed but not in the manifest")
	assert.NotContains(t, out, "cowsay", "unlisted packages are only counted")
	assert.Contains(t, out, "snap unavailable")
	assert.Contains(t, out, "Could not get lock")
	assert.NotContains(t, out, "second line")
	assert.Contains(t, out, "history not recorded")
}

func TestPrettyFormatter_PathsAndHistory(t *testing.T) {
	classes := []diff.PathClass{
		{Path: "/home/u/.config/zed", Domain: types.DomainConfigs, Status: diff.StatusOrphan, Reason: diff.ReasonAppMissing, Confidence: 0.7, Size: 2048},
		{Path: "/home/u/.config/git", Domain: types.DomainConfigs, Status: diff.StatusOwned, Confidence: 0.8},
	}
	r := &Report{
		Command: "orphans",
		Paths: &diff.PathResult{
			Domain: types.DomainConfigs,
			Extra:  []diff.PathClass{classes[0]},
			Absent: []string{"/home/u/.config/gone"},
		},
		Classes: classes,
		History: []history.Entry{{
			ID: "0123456789abcdef", Timestamp: time.Now().Add(-time.Hour), Action: types.ActionRemove,
			Items:    []history.Item{{Name: "/home/u/.config/zed", Kind: history.KindConfigPath}},
			Metadata: map[string]string{history.MetaCommand: "clean", history.MetaDomain: "configs"},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "configs")
	assert.Contains(t, out, "app-missing")
	assert.Contains(t, out, "70%")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "does not exist")
	assert.Contains(t, out, "01234567")
	assert.Contains(t, out, "irreversible")
}

func TestPlainFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PlainFormatter{}).Format(&buf, sampleReport(t)))
	out := buf.String()

	assert.Contains(t, out, "SOURCE")
	assert.Contains(t, out, "cowsay")
	assert.Contains(t, out, "unavailable")
	assert.Contains(t, out, "declared in manifest")
	assert.Contains(t, out, "warning: history not recorded")
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "failed") {
			assert.Contains(t, line, "htop")
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	r := sampleReport(t)
	r.ScanAge = 90 * time.Second

	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, r))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "apply", doc["command"])
	assert.Equal(t, "1m30s", doc["scan_age"])
	assert.Len(t, doc["plan"], 2)
	summary := doc["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["failed"])
	assert.NotContains(t, doc, "history")
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&YAMLFormatter{}).Format(&buf, sampleReport(t)))

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "apply", doc["command"])
	assert.Contains(t, doc, "diff")
	assert.Contains(t, doc, "summary")
}

func TestPathsFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PathsFormatter{}).Format(&buf, sampleReport(t)))
	assert.Equal(t, "neofetch\nhtop\n", buf.String())

	buf.Reset()
	r := &Report{Diff: sampleReport(t).Diff}
	require.NoError(t, (&PathsFormatter{}).Format(&buf, r))
	assert.Equal(t, "htop\n", buf.String())
}

func TestTemplateFormatter(t *testing.T) {
	f, err := Get("template")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, sampleReport(t)))
	assert.Equal(t, "install\tapt\tneofetch\nremove\tapt\thtop\n", buf.String())

	tf := NewTemplateFormatter(`{{range .Classes}}{{percent .Confidence}} {{bytes .Size}}{{end}}`)
	buf.Reset()
	require.NoError(t, tf.Format(&buf, &Report{Classes: []diff.PathClass{{Confidence: 0.4, Size: 1024}}}))
	assert.Equal(t, "40% 1.0 KiB", buf.String())

	tf.SetTemplate("{{.Missing")
	assert.Error(t, tf.Format(&buf, &Report{}))
}
