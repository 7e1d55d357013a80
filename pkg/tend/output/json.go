package output

import (
	"bytes"
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// document is the structured form shared by the JSON and YAML formatters.
type document struct {
	Report  `yaml:",inline"`
	ScanAge string   `json:"scan_age,omitempty" yaml:"scan_age,omitempty"`
	Summary *Summary `json:"summary,omitempty" yaml:"summary,omitempty"`
}

func buildDocument(r *Report) document {
	doc := document{Report: *r, ScanAge: formatDurationString(r.ScanAge)}
	if len(r.Results) > 0 {
		s := r.Summary()
		doc.Summary = &s
	}
	return doc
}

// formatDurationString formats a duration for structured output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.Round(time.Second).String()
}

// JSONFormatter formats output as a single indented JSON object.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildDocument(r))
}

// YAMLFormatter formats output as YAML with the same structure as
// JSONFormatter.
type YAMLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, r *Report) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(buildDocument(r)); err != nil {
		return err
	}
	return encoder.Close()
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

var (
	_ Formatter = (*JSONFormatter)(nil)
	_ Formatter = (*YAMLFormatter)(nil)
)
