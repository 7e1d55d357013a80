package output

import (
	"bytes"
)

// PathsFormatter writes one identity per line, suitable for piping:
// planned action names, classified paths, path-domain removals and
// orphans, and package removals, in that order.
type PathsFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PathsFormatter) Format(w *bytes.Buffer, r *Report) error {
	line := func(s string) {
		w.WriteString(s)
		w.WriteByte('\n')
	}
	for _, a := range r.Plan {
		line(a.Name)
	}
	for _, pc := range r.Classes {
		line(pc.Path)
	}
	if r.Paths != nil && len(r.Plan) == 0 {
		for _, pc := range r.Paths.Extra {
			line(pc.Path)
		}
		for _, pc := range r.Paths.Orphans {
			line(pc.Path)
		}
	}
	if r.Diff != nil && len(r.Plan) == 0 {
		for _, it := range r.Diff.Extra() {
			line(it.Name)
		}
	}
	return nil
}

func init() {
	Register("paths", func() Formatter {
		return &PathsFormatter{}
	})
}

var _ Formatter = (*PathsFormatter)(nil)
