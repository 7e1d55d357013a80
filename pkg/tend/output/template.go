package output

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
)

// TemplateFormatter formats output using a custom Go text/template. The
// template receives the Report.
type TemplateFormatter struct {
	templateStr string
	template    *template.Template
	mu          sync.Mutex
}

// NewTemplateFormatter creates a template formatter.
func NewTemplateFormatter(templateStr string) *TemplateFormatter {
	return &TemplateFormatter{templateStr: templateStr}
}

// SetTemplate sets or updates the template string.
func (f *TemplateFormatter) SetTemplate(templateStr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templateStr = templateStr
	f.template = nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// {{date .Timestamp "2006-01-02"}}
		"date": func(t time.Time, layout string) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(layout)
		},
		// {{bytes .Size}}
		"bytes": func(size int64) string {
			if size < 0 {
				size = 0
			}
			return humanize.IBytes(uint64(size))
		},
		// {{ago .Timestamp}}
		"ago": humanize.Time,
		// {{percent .Confidence}}
		"percent": func(v float64) string {
			return fmt.Sprintf("%.0f%%", v*100)
		},
	}
}

// Format writes the formatted output to the buffer.
func (f *TemplateFormatter) Format(w *bytes.Buffer, r *Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.template == nil {
		tmpl, err := template.New("output").Funcs(templateFuncs()).Parse(f.templateStr)
		if err != nil {
			return err
		}
		f.template = tmpl
	}
	return f.template.Execute(w, r)
}

// defaultTemplate lists planned actions.
const defaultTemplate = `{{range .Plan}}{{.Kind}}	{{.Target}}	{{.Name}}
{{end}}`

func init() {
	Register("template", func() Formatter {
		return NewTemplateFormatter(defaultTemplate)
	})
}

var _ Formatter = (*TemplateFormatter)(nil)
