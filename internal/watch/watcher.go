// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs a callback when files under module roots change.
//
// Each root is watched together with its immediate subdirectories, which is
// the depth a scan looks at. Events are matched against glob patterns
// relative to their root and coalesced over a debounce window, so the
// callback fires once with every path that changed.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the delay between the last filesystem event and the
// callback. Copying a module folder produces a burst of events that should
// trigger one rescan.
const defaultDebounce = 500 * time.Millisecond

// defaultIgnores are never reported, whatever the patterns say.
var defaultIgnores = []string{
	"**/.git/**",
	"**/*.swp",
	"**/*~",
	"**/.DS_Store",
}

var (
	// ErrNoRoots is returned by New when none of the roots exist.
	ErrNoRoots = errors.New("watch: no existing roots to watch")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watch: Run called more than once")
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Roots are the directories to watch. Roots that do not exist are
		// skipped.
		Roots []string

		// Patterns are doublestar globs (e.g. "*/*.dll") matched against
		// slash-separated paths relative to their root. An empty slice
		// reports every non-ignored file.
		Patterns []string

		// Debounce is the quiet period after the last event before the
		// callback fires. Zero or negative values use defaultDebounce.
		Debounce time.Duration

		// OnChange receives the deduplicated absolute paths that changed.
		OnChange func(ctx context.Context, changed []string) error

		// Logger receives watcher warnings and callback errors. Nil discards
		// them.
		Logger *log.Logger
	}

	// Watcher monitors module roots and fires a debounced callback when
	// matching files change. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		roots    []string
		logger   *log.Logger
		debounce time.Duration
		started  atomic.Bool
	}
)

// New validates cfg and registers every existing root and its immediate
// subdirectories with fsnotify.
func New(cfg Config) (*Watcher, error) {
	if err := validatePatterns(cfg.Patterns); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		logger:   logger,
		debounce: debounce,
	}

	for _, root := range cfg.Roots {
		if err := w.addRoot(root); err != nil {
			fsw.Close() //nolint:errcheck // best-effort cleanup
			return nil, err
		}
	}
	if len(w.roots) == 0 {
		fsw.Close() //nolint:errcheck // best-effort cleanup
		return nil, ErrNoRoots
	}

	return w, nil
}

// Roots returns the absolute roots being watched.
func (w *Watcher) Roots() []string {
	return slices.Clone(w.roots)
}

// Run blocks until ctx is cancelled, dispatching debounced callbacks. It
// returns nil on cancellation and an error when fsnotify fails for good.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire may run after ctx is cancelled because it is scheduled with
	// time.AfterFunc. A run that is still in progress defers the next one
	// instead of overlapping it.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("Previous run still in progress, deferring")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("Rerun failed", "error", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("Closing watcher failed", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}

			if evt.Has(fsnotify.Create) {
				w.maybeAddModuleDir(evt.Name)
			}
			if !w.relevant(evt.Name) {
				continue
			}

			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			// isFatalFsnotifyError is platform-specific (see watcher_fatal_*.go).
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("Watcher error", "error", err)
		}
	}
}

// addRoot watches root and its immediate subdirectories. A missing root is
// skipped; any other failure is returned.
func (w *Watcher) addRoot(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("watch: resolve root %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		w.logger.Debug("Not watching missing root", "root", root)
		return nil
	}
	if err := w.fsw.Add(abs); err != nil {
		return fmt.Errorf("watch: add root %q: %w", abs, err)
	}
	w.roots = append(w.roots, abs)

	entries, err := os.ReadDir(abs)
	if err != nil {
		w.logger.Warn("Cannot list root, module folders are not watched", "root", abs, "error", err)
		return nil
	}
	for _, e := range entries {
		w.maybeAddModuleDir(filepath.Join(abs, e.Name()))
	}
	return nil
}

// maybeAddModuleDir watches path when it is a directory directly under a
// root, so folders created after startup are picked up.
func (w *Watcher) maybeAddModuleDir(path string) {
	root, rel, ok := w.split(path)
	if !ok || filepath.Dir(rel) != "." || w.isIgnored(rel+"/") {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("Cannot watch module folder", "root", root, "path", path, "error", err)
	}
}

// relevant reports whether a changed path matches the watch patterns and
// none of the ignores.
func (w *Watcher) relevant(path string) bool {
	_, rel, ok := w.split(path)
	if !ok || w.isIgnored(rel) {
		return false
	}
	return w.matchesPatterns(rel)
}

// split returns the root containing path and the slash-separated path
// relative to it.
func (w *Watcher) split(path string) (root, rel string, ok bool) {
	for _, r := range w.roots {
		rp, err := filepath.Rel(r, path)
		if err != nil || rp == "." || rp == ".." || strings.HasPrefix(rp, ".."+string(filepath.Separator)) {
			continue
		}
		return r, filepath.ToSlash(rp), true
	}
	return "", "", false
}

func (w *Watcher) isIgnored(rel string) bool {
	for _, pat := range defaultIgnores {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Watcher) matchesPatterns(rel string) bool {
	if len(w.cfg.Patterns) == 0 {
		return true
	}
	for _, pat := range w.cfg.Patterns {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

// validatePatterns rejects malformed globs up front so they do not silently
// fail to match later.
func validatePatterns(patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid pattern %q: %w", pat, doublestar.ErrBadPattern)
		}
	}
	return nil
}
