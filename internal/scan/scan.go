// SPDX-License-Identifier: MPL-2.0

// Package scan walks module folders, pairs every `<Name>.dll-Help.xml` with
// its `<Name>.dll`, and drives cmdlet discovery, help parsing, and
// reconciliation for each pair.
//
// A scan has two phases. Planning enumerates roots and module folders on the
// calling goroutine and owns the ProcessedSet. Analysis runs each planned pair
// through the loader, serially or on a bounded pool of workers, and emits
// results to the sink in planning order from a single goroutine.
package scan

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/helpaudit/helpaudit/internal/helpdoc"
	"github.com/helpaudit/helpaudit/internal/loader"
	"github.com/helpaudit/helpaudit/internal/report"
)

const (
	// DefaultHelpSuffix is appended to a binary name to form its help file name.
	DefaultHelpSuffix = "-Help.xml"
	// DefaultBinaryExt is the extension of module binaries.
	DefaultBinaryExt = ".dll"

	// DiagnosticLoad marks a pair whose binary could not be inspected.
	DiagnosticLoad DiagnosticKind = "load"
	// DiagnosticParse marks a pair whose help document could not be parsed.
	DiagnosticParse DiagnosticKind = "parse"
	// DiagnosticFolder marks a module folder that could not be listed.
	DiagnosticFolder DiagnosticKind = "folder"
	// DiagnosticScope marks a root that exists but could not be listed.
	DiagnosticScope DiagnosticKind = "scope"
)

var (
	// ErrScopeNotFound marks a root that does not exist. It is never
	// returned from Analyze; roots that are missing are skipped.
	ErrScopeNotFound = errors.New("scope not found")
	// ErrPairIncomplete marks a help document without its binary. Such pairs
	// are skipped without a diagnostic.
	ErrPairIncomplete = errors.New("paired binary not found")
)

type (
	// DiagnosticKind classifies a non-fatal failure.
	DiagnosticKind string

	// Options tune a Scanner.
	Options struct {
		// HelpSuffix follows the binary name in help file names.
		HelpSuffix string
		// BinaryExt is the binary extension that precedes HelpSuffix.
		BinaryExt string
		// Jobs bounds how many pairs are analyzed at once. Values below 2 run
		// serially. Inline loaders always run serially.
		Jobs int
		// Logger receives progress and diagnostics. Nil discards them.
		Logger *log.Logger
	}

	// Pair is a help document and the binary it documents.
	Pair struct {
		Root       string
		Dir        string
		HelpPath   string
		BinaryPath string
		// HelpFile and Assembly are the base names stamped onto records.
		HelpFile string
		Assembly string
	}

	// Diagnostic is a failure that was logged and skipped. It is never
	// reported as a help issue.
	Diagnostic struct {
		Kind DiagnosticKind
		Path string
		Err  error
	}

	// Summary counts what a run did.
	Summary struct {
		// Roots is the number of roots that existed and were listed.
		Roots int
		// MissingRoots counts roots skipped with ErrScopeNotFound.
		MissingRoots int
		// Pairs is the number of pairs analyzed successfully.
		Pairs int
		// Duplicates counts help files skipped because the name was already
		// processed under another folder.
		Duplicates int
		// Incomplete counts help files skipped with ErrPairIncomplete.
		Incomplete int
		// Failed counts pairs that produced a load or parse diagnostic.
		Failed int
		// Issues is the number of records produced, including suppressed ones.
		Issues int
		// Suppressed is the number of records a baseline kept from the sink.
		Suppressed int

		// Diagnostics lists every logged failure in emission order.
		Diagnostics []Diagnostic
	}

	// Scanner runs scans. A Scanner may be reused; every Analyze call starts
	// with an empty ProcessedSet.
	Scanner struct {
		loader loader.Loader
		sink   report.Sink
		opts   Options
		logger *log.Logger
		parse  func(path string) (*helpdoc.DocumentedSet, error)
	}

	suppressionCounter interface {
		Suppressed() int
	}
)

// Error implements the error interface for Diagnostic.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s %s: %v", d.Kind, d.Path, d.Err)
}

// Unwrap returns the underlying failure.
func (d Diagnostic) Unwrap() error { return d.Err }

// Skipped returns the number of help files that were not analyzed.
func (s Summary) Skipped() int {
	return s.Duplicates + s.Incomplete
}

// HelpPattern returns the glob help files are matched against.
func (o Options) HelpPattern() string {
	return "*" + o.BinaryExt + o.HelpSuffix
}

// New returns a Scanner that loads binaries with l and writes records to sink.
func New(l loader.Loader, sink report.Sink, opts Options) *Scanner {
	if opts.HelpSuffix == "" {
		opts.HelpSuffix = DefaultHelpSuffix
	}
	if opts.BinaryExt == "" {
		opts.BinaryExt = DefaultBinaryExt
	}
	if _, inline := l.(*loader.InlineLoader); inline || opts.Jobs < 1 {
		opts.Jobs = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Scanner{loader: l, sink: sink, opts: opts, logger: logger, parse: helpdoc.Parse}
}

// Jobs returns the effective concurrency.
func (s *Scanner) Jobs() int {
	return s.opts.Jobs
}
