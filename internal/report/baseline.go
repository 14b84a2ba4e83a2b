// SPDX-License-Identifier: MPL-2.0

package report

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/exp/slices"

	"github.com/helpaudit/helpaudit/internal/reconcile"
)

type (
	// Suppression silences the record for one implementing type in one
	// assembly.
	Suppression struct {
		Assembly string `toml:"assembly"`
		Target   string `toml:"target"`
		Reason   string `toml:"reason,omitempty"`
	}

	// Baseline is a set of known issues that are counted but not reported.
	// It is stored as TOML:
	//
	//	[[suppress]]
	//	assembly = "Contoso.dll"
	//	target = "Contoso.SetFooCommand"
	Baseline struct {
		Suppress []Suppression `toml:"suppress"`

		index map[suppressionKey]struct{}
	}

	suppressionKey struct {
		assembly string
		target   string
	}

	// FilteredSink drops records matched by a baseline before they reach
	// the wrapped sink.
	FilteredSink struct {
		next       Sink
		baseline   *Baseline
		suppressed int
	}
)

// LoadBaseline reads a baseline file.
func LoadBaseline(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Baseline
	if err := toml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("baseline %s: %w", path, err)
	}
	for i, s := range b.Suppress {
		if strings.TrimSpace(s.Assembly) == "" || strings.TrimSpace(s.Target) == "" {
			return nil, fmt.Errorf("baseline %s: suppression %d needs both assembly and target", path, i+1)
		}
	}
	b.buildIndex()
	return &b, nil
}

// NewBaseline returns a baseline suppressing every record in records,
// sorted by assembly then target with duplicates removed.
func NewBaseline(records []reconcile.IssueRecord) *Baseline {
	b := &Baseline{Suppress: make([]Suppression, 0, len(records))}
	for _, r := range records {
		b.Suppress = append(b.Suppress, Suppression{Assembly: r.Assembly, Target: r.Target})
	}
	slices.SortFunc(b.Suppress, func(x, y Suppression) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(x.Assembly), strings.ToLower(y.Assembly)),
			cmp.Compare(x.Target, y.Target),
		)
	})
	b.Suppress = slices.CompactFunc(b.Suppress, func(x, y Suppression) bool {
		return strings.EqualFold(x.Assembly, y.Assembly) && x.Target == y.Target
	})
	b.buildIndex()
	return b
}

func (b *Baseline) buildIndex() {
	b.index = make(map[suppressionKey]struct{}, len(b.Suppress))
	for _, s := range b.Suppress {
		b.index[keyOf(s.Assembly, s.Target)] = struct{}{}
	}
}

// keyOf folds the assembly file name, which is compared case-insensitively
// like every other file name in a scan.
func keyOf(assembly, target string) suppressionKey {
	return suppressionKey{assembly: strings.ToLower(assembly), target: target}
}

// Suppresses reports whether rec is covered by the baseline. A nil baseline
// suppresses nothing.
func (b *Baseline) Suppresses(rec reconcile.IssueRecord) bool {
	if b == nil {
		return false
	}
	_, ok := b.index[keyOf(rec.Assembly, rec.Target)]
	return ok
}

// Len returns the number of suppressions.
func (b *Baseline) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Suppress)
}

// Encode writes the baseline as TOML.
func (b *Baseline) Encode(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(b)
}

// WriteFile writes the baseline to path.
func (b *Baseline) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := b.Encode(f); err != nil {
		_ = f.Close() // Best-effort close on error path
		return err
	}
	return f.Close()
}

// NewFilteredSink wraps next so that records in baseline are dropped.
func NewFilteredSink(next Sink, baseline *Baseline) *FilteredSink {
	return &FilteredSink{next: next, baseline: baseline}
}

// LogRecord implements Sink.
func (s *FilteredSink) LogRecord(rec reconcile.IssueRecord) error {
	if s.baseline.Suppresses(rec) {
		s.suppressed++
		return nil
	}
	return s.next.LogRecord(rec)
}

// Close closes the wrapped sink.
func (s *FilteredSink) Close() error {
	return s.next.Close()
}

// Suppressed returns how many records the baseline dropped.
func (s *FilteredSink) Suppressed() int {
	return s.suppressed
}

// Collector is an in-memory sink.
type Collector struct {
	Records []reconcile.IssueRecord
}

// LogRecord implements Sink.
func (c *Collector) LogRecord(rec reconcile.IssueRecord) error {
	c.Records = append(c.Records, rec)
	return nil
}

// Close implements Sink.
func (c *Collector) Close() error { return nil }
