// SPDX-License-Identifier: MPL-2.0

package report

import (
	"encoding/json"
	"io"

	"github.com/helpaudit/helpaudit/internal/reconcile"
)

// JSONSink collects records and writes them as one indented JSON array on
// Close. An empty run writes [].
type JSONSink struct {
	w       io.Writer
	records []reconcile.IssueRecord
}

// NewJSONSink returns a JSONSink writing to w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{w: w, records: []reconcile.IssueRecord{}}
}

// LogRecord implements Sink.
func (s *JSONSink) LogRecord(rec reconcile.IssueRecord) error {
	s.records = append(s.records, rec)
	return nil
}

// Close writes the array.
func (s *JSONSink) Close() error {
	enc := json.NewEncoder(s.w)
	enc.SetIndent("", "  ")
	return enc.Encode(s.records)
}
