package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/tend/pkg/tend/diff"
	"github.com/jamesainslie/tend/pkg/tend/history"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

// PrettyFormatter renders reports with colors and styling using lipgloss.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	if r.Diff != nil {
		w.WriteString(f.formatDiff(r.Diff))
	}
	if r.Paths != nil {
		w.WriteString(f.formatPathDiff(r.Paths))
	}
	if len(r.Classes) > 0 {
		w.WriteString(f.formatClasses(r.Classes))
	}
	if len(r.Plan) > 0 {
		w.WriteString(f.formatPlan(r.Plan, r.DryRun))
	}
	if len(r.Results) > 0 {
		w.WriteString(f.formatResults(r))
	}
	if len(r.History) > 0 {
		w.WriteString(f.formatHistory(r.History))
	}
	if r.Status != nil {
		w.WriteString(f.formatStatus(r.Status, r.ScanAge))
	}
	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	return nil
}

func (f *PrettyFormatter) formatDiff(d *diff.Result) string {
	var sb strings.Builder
	for _, sd := range d.Sources {
		header := fmt.Sprintf("%s %s  %s",
			LabelStyle.Render("Source:"), ValueStyle.Render(string(sd.Source)),
			MutedStyle.Render(fmt.Sprintf("%d installed", sd.Installed)))
		sb.WriteString(HeaderBox.Render(header))
		sb.WriteString("\n")

		if len(sd.Missing) == 0 && len(sd.Extra) == 0 {
			sb.WriteString(SuccessStyle.Render("  in sync"))
			sb.WriteString("\n")
		}
		for _, it := range sd.Missing {
			sb.WriteString(SuccessStyle.Render("  + " + it.Name))
			sb.WriteString(MutedStyle.Render("  missing"))
			sb.WriteString("\n")
		}
		for _, it := range sd.Extra {
			sb.WriteString(ErrorStyle.Render("  - " + it.Name))
			sb.WriteString(MutedStyle.Render("  marked for removal"))
			sb.WriteString("\n")
		}
		for _, name := range sd.Protected {
			sb.WriteString(MutedStyle.Render("  ! " + name + "  protected, skipped"))
			sb.WriteString("\n")
		}
		if len(sd.New) > 0 {
			sb.WriteString(MutedStyle.Render(fmt.Sprintf("  %d installed but not in the manifest (use -o plain to list)", len(sd.New))))
			sb.WriteString("\n")
		}
	}
	for _, src := range d.Skipped {
		sb.WriteString(WarningStyle.Render(fmt.Sprintf("%s unavailable, skipped", src)))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) formatPathDiff(p *diff.PathResult) string {
	var sb strings.Builder
	sb.WriteString(HeaderBox.Render(fmt.Sprintf("%s %s", LabelStyle.Render("Domain:"), ValueStyle.Render(string(p.Domain)))))
	sb.WriteString("\n")

	if len(p.Extra) == 0 {
		sb.WriteString(SuccessStyle.Render("  nothing marked for removal"))
		sb.WriteString("\n")
	}
	for _, pc := range p.Extra {
		fmt.Fprintf(&sb, "  %s %s\n", SizeStyle.Render(padLeft(types.FormatSize(pc.Size), 10)), ErrorStyle.Render(pc.Path))
	}
	for _, pc := range p.Protected {
		sb.WriteString(MutedStyle.Render("  ! " + pc.Path + "  protected, skipped"))
		sb.WriteString("\n")
	}
	for _, path := range p.Absent {
		sb.WriteString(MutedStyle.Render("  ? " + path + "  does not exist"))
		sb.WriteString("\n")
	}
	if len(p.Orphans) > 0 {
		sb.WriteString(WarningStyle.Render(fmt.Sprintf("  %d unlisted orphans (see tend orphans)", len(p.Orphans))))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) formatClasses(classes []diff.PathClass) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  %s%s%s%s%s\n",
		TableHeaderStyle.Render(padRight("STATUS", 10)),
		TableHeaderStyle.Render(padRight("REASON", 12)),
		TableHeaderStyle.Render(padLeft("CONF", 5)),
		TableHeaderStyle.Render(padLeft("SIZE", 10)),
		TableHeaderStyle.Render("PATH"))

	var total int64
	for _, pc := range classes {
		style := MutedStyle
		switch pc.Status {
		case diff.StatusOrphan:
			style = WarningStyle
			total += pc.Size
		case diff.StatusOwned:
			style = SuccessStyle
		}
		fmt.Fprintf(&sb, "  %s  %s  %s  %s  %s\n",
			style.Render(padRight(string(pc.Status), 8)),
			MutedStyle.Render(padRight(string(pc.Reason), 10)),
			ValueStyle.Render(padLeft(confidence(pc.Confidence), 5)),
			SizeStyle.Render(padLeft(types.FormatSize(pc.Size), 10)),
			ValueStyle.Render(pc.Path))
	}

	footer := fmt.Sprintf("%s %s  %s %s",
		LabelStyle.Render("Paths:"), ValueStyle.Render(fmt.Sprintf("%d", len(classes))),
		LabelStyle.Render("Orphaned:"), SizeStyle.Render(humanize.IBytes(uint64(total))))
	sb.WriteString(FooterBox.Render(footer))
	sb.WriteString("\n")
	return sb.String()
}

func (f *PrettyFormatter) formatPlan(plan []types.Action, dryRun bool) string {
	var sb strings.Builder
	title := "Planned actions"
	if dryRun {
		title += " (dry run)"
	}
	sb.WriteString(TitleStyle.Render(title))
	sb.WriteString("\n")
	for _, a := range plan {
		style := SuccessStyle
		if a.Kind.Destructive() {
			style = ErrorStyle
		}
		target := a.Target()
		line := fmt.Sprintf("  %s %s %s", style.Render(padRight(string(a.Kind), 8)), LabelStyle.Render(padRight(target, 10)), ValueStyle.Render(a.Name))
		if a.Reason != "" {
			line += MutedStyle.Render("  " + a.Reason)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) formatResults(r *Report) string {
	var sb strings.Builder
	for _, res := range r.Results {
		if res.Success {
			sb.WriteString(SuccessStyle.Render("  ✓ "))
			sb.WriteString(ValueStyle.Render(res.Action.String()))
			if res.Message != "" {
				sb.WriteString(MutedStyle.Render("  " + res.Message))
			}
		} else {
			sb.WriteString(ErrorStyle.Render("  ✗ "))
			sb.WriteString(ValueStyle.Render(res.Action.String()))
			sb.WriteString(ErrorStyle.Render("  " + firstLine(res.Error)))
		}
		sb.WriteString("\n")
	}

	s := r.Summary()
	parts := []string{
		LabelStyle.Render("Succeeded:") + " " + SuccessStyle.Render(fmt.Sprintf("%d", s.Succeeded)),
	}
	if s.Failed > 0 {
		parts = append(parts, LabelStyle.Render("Failed:")+" "+ErrorStyle.Render(fmt.Sprintf("%d", s.Failed)))
	}
	if r.DryRun {
		parts = append(parts, MutedStyle.Render("dry run, nothing changed"))
	}
	sb.WriteString(FooterBox.Render(strings.Join(parts, "  ")))
	sb.WriteString("\n")
	return sb.String()
}

func (f *PrettyFormatter) formatHistory(entries []history.Entry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  %s%s%s%s%s\n",
		TableHeaderStyle.Render(padRight("ID", 8)),
		TableHeaderStyle.Render(padRight("WHEN", 16)),
		TableHeaderStyle.Render(padRight("ACTION", 8)),
		TableHeaderStyle.Render(padLeft("ITEMS", 5)),
		TableHeaderStyle.Render("DETAIL"))
	for _, e := range entries {
		detail := e.Metadata[history.MetaCommand]
		if d := e.Metadata[history.MetaDomain]; d != "" {
			detail += " " + d
		}
		if !e.Reversible {
			detail += " (irreversible)"
		}
		fmt.Fprintf(&sb, "  %s  %s  %s  %s  %s\n",
			ValueStyle.Render(e.ShortID()),
			MutedStyle.Render(padRight(humanize.Time(e.Timestamp), 14)),
			ValueStyle.Render(padRight(string(e.Action), 8)),
			ValueStyle.Render(padLeft(fmt.Sprintf("%d", len(e.Items)), 5)),
			MutedStyle.Render(strings.TrimSpace(detail)))
	}
	if len(entries) == 1 {
		for _, it := range entries[0].Items {
			line := "    " + it.Name
			if it.Source != "" {
				line += MutedStyle.Render("  " + string(it.Source))
			}
			sb.WriteString(ValueStyle.Render(line))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (f *PrettyFormatter) formatStatus(s *Status, age time.Duration) string {
	var lines []string
	if s.Host != "" {
		lines = append(lines, LabelStyle.Render("Host:")+" "+ValueStyle.Render(s.Host))
	}
	lines = append(lines, LabelStyle.Render("Manifest:")+" "+ValueStyle.Render(s.Manifest)+
		MutedStyle.Render(fmt.Sprintf("  %d declared", s.Declared)))
	scanned := MutedStyle.Render("never")
	if !s.Taken.IsZero() {
		scanned = ValueStyle.Render(humanize.Time(s.Taken))
		if age > 24*time.Hour {
			scanned = WarningStyle.Render(humanize.Time(s.Taken) + ", run tend diff to refresh")
		}
	}
	lines = append(lines, LabelStyle.Render("Last scan:")+" "+scanned)

	var sb strings.Builder
	sb.WriteString(HeaderBox.Render(strings.Join(lines, "\n")))
	sb.WriteString("\n")
	for _, src := range types.Sources {
		n, ok := s.Counts[src]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "  %s %s\n", LabelStyle.Render(padRight(string(src), 8)), ValueStyle.Render(fmt.Sprintf("%d installed", n)))
	}
	for _, src := range s.Skipped {
		sb.WriteString(MutedStyle.Render(fmt.Sprintf("  %s unavailable", src)))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

// padLeft pads s with spaces on the left to width.
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// padRight pads s with spaces on the right to width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func confidence(c float64) string {
	return fmt.Sprintf("%.0f%%", c*100)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
