// SPDX-License-Identifier: MPL-2.0

package clrmeta

import (
	"errors"
	"fmt"
)

var (
	// ErrNotManaged is returned when a PE image carries no CLI header.
	ErrNotManaged = errors.New("image has no CLI metadata")
	// ErrMalformed is returned when the metadata structures cannot be decoded.
	ErrMalformed = errors.New("malformed metadata")
)

// FormatError describes a decoding failure at a specific structure.
// It wraps ErrMalformed for errors.Is() compatibility.
type FormatError struct {
	Structure string
	Detail    string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s", e.Structure, e.Detail)
}

// Unwrap returns ErrMalformed.
func (e *FormatError) Unwrap() error {
	return ErrMalformed
}

func malformed(structure, format string, args ...any) error {
	return &FormatError{Structure: structure, Detail: fmt.Sprintf(format, args...)}
}
