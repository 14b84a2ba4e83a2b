// SPDX-License-Identifier: MPL-2.0

package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/helpaudit/helpaudit/internal/reconcile"
)

// csvHeader is the column order of every CSV report.
var csvHeader = []string{"Target", "Severity", "Description", "Remediation", "HelpFile", "Assembly"}

// CSVSink writes records as CSV rows under a fixed header.
type CSVSink struct {
	w *csv.Writer
}

// NewCSVSink writes the header row immediately so that a run without issues
// still produces a well-formed report.
func NewCSVSink(w io.Writer) (*CSVSink, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return nil, err
	}
	return &CSVSink{w: cw}, nil
}

// LogRecord implements Sink.
func (s *CSVSink) LogRecord(rec reconcile.IssueRecord) error {
	return s.w.Write([]string{
		rec.Target,
		strconv.Itoa(rec.Severity),
		rec.Description,
		rec.Remediation,
		rec.HelpFile,
		rec.Assembly,
	})
}

// Close flushes buffered rows.
func (s *CSVSink) Close() error {
	s.w.Flush()
	return s.w.Error()
}
