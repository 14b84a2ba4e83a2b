// SPDX-License-Identifier: MPL-2.0

package scan

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/helpaudit/helpaudit/internal/reconcile"
)

// outcome is the result of analyzing one pair.
type outcome struct {
	pair    Pair
	records []reconcile.IssueRecord
	diag    *Diagnostic
	err     error // cancellation only
}

// Analyze scans roots and writes one record per undocumented cmdlet to the
// sink, in discovery order: root, then module folder, then file. Missing
// roots, incomplete pairs, and pairs that fail to load or parse are skipped;
// Analyze only returns an error when the context is cancelled or the sink
// fails. The sink is not closed.
func (s *Scanner) Analyze(ctx context.Context, roots []string) (Summary, error) {
	start := time.Now()
	pairs, summary, err := s.Plan(ctx, roots)
	if err != nil {
		return summary, err
	}
	s.logger.Debug("Planned scan", "roots", len(roots), "pairs", len(pairs), "jobs", s.opts.Jobs)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sinkErr error
	emit := func(o outcome) {
		switch {
		case sinkErr != nil || o.err != nil:
		case o.diag != nil:
			s.addDiagnostic(&summary, *o.diag)
		default:
			summary.Pairs++
			summary.Issues += len(o.records)
			for _, rec := range o.records {
				if err := s.sink.LogRecord(rec); err != nil {
					sinkErr = err
					cancel()
					return
				}
			}
			s.logger.Debug("Analyzed pair", "assembly", o.pair.BinaryPath, "issues", len(o.records))
		}
	}

	if s.opts.Jobs <= 1 {
		for _, p := range pairs {
			emit(s.analyzePair(ctx, p))
		}
	} else {
		s.analyzeConcurrently(ctx, pairs, emit)
	}

	if sc, ok := s.sink.(suppressionCounter); ok {
		summary.Suppressed = sc.Suppressed()
	}
	s.logger.Info("Scan finished",
		"pairs", summary.Pairs, "issues", summary.Issues, "failed", summary.Failed,
		"skipped", summary.Skipped(), "elapsed", time.Since(start).Round(time.Millisecond))

	if sinkErr != nil {
		return summary, sinkErr
	}
	return summary, ctx.Err()
}

// analyzeConcurrently runs pairs on at most Jobs goroutines and hands their
// outcomes to emit in planning order.
func (s *Scanner) analyzeConcurrently(ctx context.Context, pairs []Pair, emit func(outcome)) {
	results := make([]chan outcome, len(pairs))
	for i := range results {
		results[i] = make(chan outcome, 1)
	}

	var g errgroup.Group
	g.SetLimit(s.opts.Jobs)
	go func() {
		for i, p := range pairs {
			g.Go(func() error {
				results[i] <- s.analyzePair(ctx, p)
				return nil
			})
		}
	}()

	for i := range pairs {
		emit(<-results[i])
	}
	_ = g.Wait() // every goroutine has delivered its outcome
}

// analyzePair loads the binary, parses the help document, and reconciles.
func (s *Scanner) analyzePair(ctx context.Context, p Pair) outcome {
	if err := ctx.Err(); err != nil {
		return outcome{pair: p, err: err}
	}

	cmds, err := s.loader.LoadCommands(ctx, p.BinaryPath)
	if err != nil {
		if ctx.Err() != nil {
			return outcome{pair: p, err: ctx.Err()}
		}
		return outcome{pair: p, diag: &Diagnostic{Kind: DiagnosticLoad, Path: p.BinaryPath, Err: err}}
	}

	documented, err := s.parse(p.HelpPath)
	if err != nil {
		return outcome{pair: p, diag: &Diagnostic{Kind: DiagnosticParse, Path: p.HelpPath, Err: err}}
	}

	records := reconcile.Reconcile(cmds, documented)
	return outcome{pair: p, records: reconcile.WithContext(records, p.HelpFile, p.Assembly)}
}
