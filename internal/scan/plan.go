// SPDX-License-Identifier: MPL-2.0

package scan

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Plan enumerates the pairs Analyze would process, applying the same
// deduplication. Planning is cheap; it only lists directories and stats
// binaries.
func (s *Scanner) Plan(ctx context.Context, roots []string) ([]Pair, Summary, error) {
	var (
		pairs     []Pair
		summary   Summary
		processed = NewProcessedSet()
	)
	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return nil, summary, err
		}
		s.planRoot(root, processed, &pairs, &summary)
	}
	return pairs, summary, nil
}

func (s *Scanner) planRoot(root string, processed *ProcessedSet, pairs *[]Pair, summary *Summary) {
	abs, err := filepath.Abs(root)
	if err != nil {
		s.addDiagnostic(summary, Diagnostic{Kind: DiagnosticScope, Path: root, Err: err})
		return
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			summary.MissingRoots++
			s.logger.Debug("Skipping scope", "root", abs, "reason", ErrScopeNotFound)
			return
		}
		// The root exists but cannot be stat'ed (e.g. a permission error on
		// a parent); that aborts this root like a failed listing would.
		s.addDiagnostic(summary, Diagnostic{Kind: DiagnosticScope, Path: abs, Err: err})
		return
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		s.addDiagnostic(summary, Diagnostic{Kind: DiagnosticScope, Path: abs, Err: err})
		return
	}
	summary.Roots++

	for _, e := range entries {
		dir := filepath.Join(abs, e.Name())
		if !isDir(dir, e) {
			continue
		}
		s.planFolder(abs, dir, processed, pairs, summary)
	}
}

func (s *Scanner) planFolder(root, dir string, processed *ProcessedSet, pairs *[]Pair, summary *Summary) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.addDiagnostic(summary, Diagnostic{Kind: DiagnosticFolder, Path: dir, Err: err})
		return
	}

	suffix := s.opts.BinaryExt + s.opts.HelpSuffix
	// Filter against the set as it stood before this folder.
	var helpFiles []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || len(name) <= len(suffix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		if processed.Contains(name) {
			summary.Duplicates++
			s.logger.Debug("Skipping processed help file", "help", filepath.Join(dir, name))
			continue
		}
		helpFiles = append(helpFiles, name)
	}

	for _, helpFile := range helpFiles {
		helpPath := filepath.Join(dir, helpFile)
		binaryPath := strings.TrimSuffix(helpPath, s.opts.HelpSuffix)
		if info, err := os.Stat(binaryPath); err != nil || info.IsDir() {
			summary.Incomplete++
			s.logger.Debug("Skipping help file", "help", helpPath, "reason", ErrPairIncomplete)
			continue
		}
		processed.Add(helpFile)
		*pairs = append(*pairs, Pair{
			Root:       root,
			Dir:        dir,
			HelpPath:   helpPath,
			BinaryPath: binaryPath,
			HelpFile:   helpFile,
			Assembly:   filepath.Base(binaryPath),
		})
	}
}

// isDir follows symlinks so linked module folders are scanned too.
func isDir(path string, e fs.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (s *Scanner) addDiagnostic(summary *Summary, d Diagnostic) {
	summary.Diagnostics = append(summary.Diagnostics, d)
	switch d.Kind {
	case DiagnosticLoad, DiagnosticParse:
		summary.Failed++
		s.logger.Warn("Skipped pair", "kind", d.Kind, "path", d.Path, "error", d.Err)
	default:
		s.logger.Error("Cannot read directory", "kind", d.Kind, "path", d.Path, "error", d.Err)
	}
}
