// SPDX-License-Identifier: MPL-2.0

package report

import (
	"errors"

	"github.com/helpaudit/helpaudit/internal/reconcile"
)

// Tee forwards every record to each sink in order and stops at the first
// failure.
type Tee []Sink

// LogRecord implements Sink.
func (t Tee) LogRecord(rec reconcile.IssueRecord) error {
	for _, s := range t {
		if err := s.LogRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink, even after a failure.
func (t Tee) Close() error {
	errs := make([]error, 0, len(t))
	for _, s := range t {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
