// SPDX-License-Identifier: MPL-2.0

// Package loader discovers the cmdlets declared by a binary module. Every
// inspection runs inside a disposable context scoped to the module's
// directory: by default a short-lived worker process that exits after one
// assembly, so nothing loaded for one module can leak into the next.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// DefaultTimeout bounds a single worker inspection.
const DefaultTimeout = 60 * time.Second

// ErrLoad is the sentinel wrapped by every LoadError.
var ErrLoad = errors.New("assembly load failed")

type (
	// CommandMetadata describes one cmdlet exported by an assembly.
	CommandMetadata struct {
		// CommandName is the Verb-Noun name the cmdlet is invoked by.
		CommandName string `json:"name"`
		// TypeName is the full name of the implementing type.
		TypeName string `json:"type"`
	}

	// Result is what an inspector found in one assembly. Warnings describe
	// individual types that were skipped; they never fail the inspection.
	Result struct {
		Commands []CommandMetadata `json:"commands"`
		Warnings []string          `json:"warnings,omitempty"`
	}

	// Loader extracts the cmdlets declared by the assembly at binaryPath.
	// The returned error, when non-nil, is a *LoadError.
	Loader interface {
		LoadCommands(ctx context.Context, binaryPath string) ([]CommandMetadata, error)
	}

	// LoadError reports an assembly that could not be loaded or inspected.
	LoadError struct {
		Path string
		// Timeout is set when the worker was killed for exceeding its deadline.
		Timeout bool
		Err     error
	}
)

// Error implements the error interface for LoadError.
func (e *LoadError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("load %s: timed out: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

// Unwrap returns both ErrLoad and the underlying cause.
func (e *LoadError) Unwrap() []error { return []error{ErrLoad, e.Err} }

// splitTarget returns the absolute directory and the file name of an
// assembly path. The directory is the base every relative lookup made during
// the inspection resolves against.
func splitTarget(binaryPath string) (dir, file string, err error) {
	abs, err := filepath.Abs(binaryPath)
	if err != nil {
		return "", "", err
	}
	return filepath.Dir(abs), filepath.Base(abs), nil
}
