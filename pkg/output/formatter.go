// Package output provides formatters for tabular profiler reports.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-json"
)

// Format represents the output format type.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatTSV   Format = "tsv"
)

// ParseFormat returns the Format named by s, defaulting to FormatTable.
func ParseFormat(s string) Format {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON
	case FormatTSV:
		return FormatTSV
	default:
		return FormatTable
	}
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
)

// Formatter renders tables in one of the supported formats.
type Formatter struct {
	format Format
	writer io.Writer
}

// NewFormatter creates a new formatter.
func NewFormatter(format Format, writer io.Writer) *Formatter {
	return &Formatter{
		format: format,
		writer: writer,
	}
}

// Render outputs t in the configured format.
func (f *Formatter) Render(t *Table) error {
	switch f.format {
	case FormatJSON:
		return f.renderJSON(t)
	case FormatTSV:
		return f.renderTSV(t)
	default:
		return f.renderTable(t)
	}
}

// renderTable outputs t as a bordered, left-aligned table.
func (f *Formatter) renderTable(t *Table) error {
	if t.Title != "" {
		if _, err := fmt.Fprintln(f.writer, titleStyle.Render(t.Title)); err != nil {
			return err
		}
	}

	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = row.Strings()
	}

	lt := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(t.Headers...).
		Rows(rows...)

	_, err := fmt.Fprintln(f.writer, lt)
	return err
}

// renderJSON outputs t as headers plus ordered rows. Numeric cells keep their raw value;
// rows are arrays so repeated header names stay distinct.
func (f *Formatter) renderJSON(t *Table) error {
	output := struct {
		Title   string   `json:"title,omitempty"`
		Headers []string `json:"headers"`
		Rows    [][]any  `json:"rows"`
	}{
		Title:   t.Title,
		Headers: t.Headers,
		Rows:    make([][]any, 0, len(t.Rows)),
	}
	for _, row := range t.Rows {
		values := make([]any, len(row))
		for i, c := range row {
			values[i] = c.Raw()
		}
		output.Rows = append(output.Rows, values)
	}

	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// renderTSV outputs t as tab-separated values.
func (f *Formatter) renderTSV(t *Table) error {
	if _, err := fmt.Fprintln(f.writer, strings.Join(t.Headers, "\t")); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if _, err := fmt.Fprintln(f.writer, strings.Join(row.Strings(), "\t")); err != nil {
			return err
		}
	}
	return nil
}
