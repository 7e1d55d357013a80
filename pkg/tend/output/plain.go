package output

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/jamesainslie/tend/pkg/tend/diff"
	"github.com/jamesainslie/tend/pkg/tend/history"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

// PlainFormatter renders each section as an aligned, uncolored table
// suitable for scripting. Every item is listed, including unlisted
// packages that pretty output only counts.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	sections := []func(io.Writer, *Report){
		plainStatus, plainDiff, plainPaths, plainClasses, plainPlan, plainResults, plainHistory,
	}
	for _, section := range sections {
		section(tw, r)
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(tw, "warning: %s\n", warning)
	}
	return tw.Flush()
}

func plainDiff(w io.Writer, r *Report) {
	if r.Diff == nil {
		return
	}
	fmt.Fprint(w, "SOURCE\tSTATE\tNAME\n")
	for _, sd := range r.Diff.Sources {
		for _, it := range sd.Missing {
			fmt.Fprintf(w, "%s\tmissing\t%s\n", sd.Source, it.Name)
		}
		for _, it := range sd.Extra {
			fmt.Fprintf(w, "%s\textra\t%s\n", sd.Source, it.Name)
		}
		for _, name := range sd.Protected {
			fmt.Fprintf(w, "%s\tprotected\t%s\n", sd.Source, name)
		}
		for _, it := range sd.New {
			fmt.Fprintf(w, "%s\tnew\t%s\n", sd.Source, it.Name)
		}
	}
	for _, src := range r.Diff.Skipped {
		fmt.Fprintf(w, "%s\tunavailable\t-\n", src)
	}
}

func plainPaths(w io.Writer, r *Report) {
	p := r.Paths
	if p == nil {
		return
	}
	fmt.Fprint(w, "DOMAIN\tSTATE\tSIZE\tPATH\n")
	row := func(state string, pc diff.PathClass) {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.Domain, state, pc.Size, pc.Path)
	}
	for _, pc := range p.Extra {
		row("extra", pc)
	}
	for _, pc := range p.Protected {
		row("protected", pc)
	}
	for _, path := range p.Absent {
		fmt.Fprintf(w, "%s\tabsent\t-\t%s\n", p.Domain, path)
	}
	for _, pc := range p.Orphans {
		row("orphan", pc)
	}
}

func plainClasses(w io.Writer, r *Report) {
	if len(r.Classes) == 0 {
		return
	}
	fmt.Fprint(w, "STATUS\tREASON\tCONFIDENCE\tOWNER\tSIZE\tPATH\n")
	for _, pc := range r.Classes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			pc.Status, dash(string(pc.Reason)), strconv.FormatFloat(pc.Confidence, 'f', 2, 64),
			dash(pc.Owner), pc.Size, pc.Path)
	}
}

func plainPlan(w io.Writer, r *Report) {
	if len(r.Plan) == 0 {
		return
	}
	fmt.Fprint(w, "ACTION\tTARGET\tNAME\tREASON\n")
	for _, a := range r.Plan {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Kind, a.Target(), a.Name, dash(a.Reason))
	}
}

func plainResults(w io.Writer, r *Report) {
	if len(r.Results) == 0 {
		return
	}
	fmt.Fprint(w, "RESULT\tACTION\tTARGET\tNAME\tDETAIL\n")
	for _, res := range r.Results {
		state, detail := "ok", res.Message
		if res.Failed() {
			state, detail = "failed", firstLine(res.Error)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", state, res.Action.Kind, res.Action.Target(), res.Action.Name, dash(detail))
	}
}

func plainHistory(w io.Writer, r *Report) {
	if len(r.History) == 0 {
		return
	}
	fmt.Fprint(w, "ID\tTIMESTAMP\tACTION\tITEMS\tREVERSIBLE\tCOMMAND\n")
	for _, e := range r.History {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%s\n",
			e.ID, e.Timestamp.Format(time.RFC3339), e.Action, len(e.Items), e.Reversible,
			dash(e.Metadata[history.MetaCommand]))
	}
}

func plainStatus(w io.Writer, r *Report) {
	s := r.Status
	if s == nil {
		return
	}
	taken := "never"
	if !s.Taken.IsZero() {
		taken = s.Taken.Format(time.RFC3339)
	}
	fmt.Fprintf(w, "manifest\t%s\n", s.Manifest)
	fmt.Fprintf(w, "declared\t%d\n", s.Declared)
	fmt.Fprintf(w, "last_scan\t%s\n", taken)
	for _, src := range types.Sources {
		if n, ok := s.Counts[src]; ok {
			fmt.Fprintf(w, "%s\t%d\n", src, n)
		}
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)
