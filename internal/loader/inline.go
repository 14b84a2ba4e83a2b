// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// InlineLoader runs an Inspector inside the current process. Paths are
// resolved against the assembly directory explicitly, so the working
// directory is never touched; a panicking inspector is turned into a
// LoadError. It offers no protection against code that leaks process state,
// which is why the scanner never runs it concurrently.
type InlineLoader struct {
	inspector Inspector
	logger    *log.Logger
}

// NewInlineLoader returns an InlineLoader. A nil logger discards warnings.
func NewInlineLoader(inspector Inspector, logger *log.Logger) *InlineLoader {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &InlineLoader{inspector: inspector, logger: logger}
}

// LoadCommands implements Loader.
func (l *InlineLoader) LoadCommands(ctx context.Context, binaryPath string) (cmds []CommandMetadata, err error) {
	dir, file, err := splitTarget(binaryPath)
	if err != nil {
		return nil, &LoadError{Path: binaryPath, Err: err}
	}

	res, err := inspectSafely(ctx, l.inspector, dir, file)
	if err != nil {
		return nil, &LoadError{Path: binaryPath, Err: err}
	}
	logWarnings(l.logger, binaryPath, res.Warnings)
	return res.Commands, nil
}

// inspectSafely runs the inspector and converts a panic into an error.
func inspectSafely(ctx context.Context, inspector Inspector, dir, file string) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = fmt.Errorf("inspector panicked: %v", r)
		}
	}()
	return inspector.Inspect(ctx, dir, file)
}

func logWarnings(logger *log.Logger, binaryPath string, warnings []string) {
	for _, w := range warnings {
		logger.Warn("Skipped type", "assembly", binaryPath, "reason", w)
	}
}
