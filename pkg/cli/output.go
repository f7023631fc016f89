package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is an aligned table (default).
	FormatText OutputFormat = "text"
	// FormatJSON is indented JSON.
	FormatJSON OutputFormat = "json"
	// FormatYAML is YAML.
	FormatYAML OutputFormat = "yaml"
)

// Tabular is implemented by results that render as a table in text mode.
type Tabular interface {
	Headers() []string
	Rows() [][]string
}

// Formatter formats command output.
type Formatter interface {
	FormatTo(w io.Writer, data any) error
}

// TextFormatter renders Tabular values as aligned columns and anything else
// with %v.
type TextFormatter struct{}

// FormatTo writes data to w in text format.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	t, ok := data.(Tabular)
	if !ok {
		_, err := fmt.Fprintf(w, "%v\n", data)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if headers := t.Headers(); len(headers) > 0 {
		fmt.Fprintln(tw, strings.Join(headers, "\t"))
	}
	for _, row := range t.Rows() {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes data to w in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct{}

// FormatTo writes data to w in YAML format.
func (f *YAMLFormatter) FormatTo(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}

// NewFormatter creates a formatter for the named format. The empty string
// selects FormatText.
func NewFormatter(format OutputFormat) (Formatter, error) {
	switch format {
	case "", FormatText:
		return &TextFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{Indent: true}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

// Printer writes colored status lines.
type Printer struct {
	w       io.Writer
	success *color.Color
	warning *color.Color
	failure *color.Color
	detail  *color.Color
}

// NewPrinter creates a Printer writing to w. Color follows color.NoColor,
// which is set when stdout is not a terminal or NO_COLOR is present.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{
		w:       w,
		success: color.New(color.FgGreen),
		warning: color.New(color.FgYellow),
		failure: color.New(color.FgRed, color.Bold),
		detail:  color.New(color.FgCyan),
	}
}

// DisableColor turns color off for this printer only.
func (p *Printer) DisableColor() {
	for _, c := range []*color.Color{p.success, p.warning, p.failure, p.detail} {
		c.DisableColor()
	}
}

// Success prints a line prefixed with a check mark.
func (p *Printer) Success(format string, args ...any) {
	p.success.Fprintf(p.w, "✓ "+format+"\n", args...)
}

// Warn prints a line prefixed with a warning sign.
func (p *Printer) Warn(format string, args ...any) {
	p.warning.Fprintf(p.w, "⚠ "+format+"\n", args...)
}

// Fail prints a line prefixed with a cross.
func (p *Printer) Fail(format string, args ...any) {
	p.failure.Fprintf(p.w, "✗ "+format+"\n", args...)
}

// Detail prints an indented key and value.
func (p *Printer) Detail(key string, value any) {
	fmt.Fprintf(p.w, "  %s %v\n", p.detail.Sprint(key+":"), value)
}
