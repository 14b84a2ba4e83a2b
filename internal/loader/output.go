// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"bytes"
	"errors"
	"fmt"
)

const (
	// maxWorkerOutput caps the result a worker or inspector script may print.
	maxWorkerOutput = 16 << 20
	// maxWorkerStderr caps the diagnostics kept from a worker or script.
	maxWorkerStderr = 64 << 10
)

// cappedBuffer keeps the first limit bytes written to it and discards the
// rest. Writes never fail, so a chatty child process is not blocked or killed
// by a broken pipe.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

// Write implements io.Writer.
func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room >= len(p) {
		return b.buf.Write(p)
	}
	if room > 0 {
		b.buf.Write(p[:room])
	}
	b.truncated = true
	return len(p), nil
}

// Bytes returns the retained output.
func (b *cappedBuffer) Bytes() []byte { return b.buf.Bytes() }

// String returns the retained output.
func (b *cappedBuffer) String() string { return b.buf.String() }

// Truncated reports whether output was discarded.
func (b *cappedBuffer) Truncated() bool { return b.truncated }

// ErrOutputTooLarge is returned when a worker or inspector script prints more
// than the loader keeps.
var ErrOutputTooLarge = errors.New("output too large")

func outputTooLarge(what string, limit int) error {
	return fmt.Errorf("%w: %s exceeds %d bytes", ErrOutputTooLarge, what, limit)
}
