// SPDX-License-Identifier: MPL-2.0

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/helpaudit/helpaudit/internal/reconcile"
)

// MarkdownSink writes a markdown document with one table row per record.
type MarkdownSink struct {
	w       io.Writer
	records []reconcile.IssueRecord
}

// NewMarkdownSink returns a MarkdownSink writing to w.
func NewMarkdownSink(w io.Writer) *MarkdownSink {
	return &MarkdownSink{w: w}
}

// LogRecord implements Sink.
func (s *MarkdownSink) LogRecord(rec reconcile.IssueRecord) error {
	s.records = append(s.records, rec)
	return nil
}

// Close writes the document.
func (s *MarkdownSink) Close() error {
	_, err := io.WriteString(s.w, Markdown(s.records))
	return err
}

// Markdown renders records as a markdown document grouped under one table.
func Markdown(records []reconcile.IssueRecord) string {
	var sb strings.Builder
	sb.WriteString("# Help issues\n\n")
	if len(records) == 0 {
		sb.WriteString("Every cmdlet has a help entry.\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "%d cmdlet(s) without help.\n\n", len(records))
	sb.WriteString("| Assembly | Help file | Target | Severity | Description | Remediation |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for _, r := range records {
		fmt.Fprintf(&sb, "| %s | %s | `%s` | %d | %s | %s |\n",
			cell(r.Assembly), cell(r.HelpFile), strings.ReplaceAll(r.Target, "`", "'"),
			r.Severity, cell(r.Description), cell(r.Remediation))
	}
	return sb.String()
}

// cell escapes characters that would break a table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// Render renders markdown for the terminal. A width of zero or less disables
// wrapping of both paragraphs and table cells.
func Render(markdown string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	} else {
		opts = append(opts, glamour.WithWordWrap(0), glamour.WithTableWrap(false))
	}
	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return renderer.Render(markdown)
}
