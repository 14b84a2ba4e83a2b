// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import (
	"fmt"
	"syscall"
	"testing"
)

func TestIsFatalFsnotifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "too many open files", err: errnoTooManyOpenFiles, want: true},
		{name: "invalid handle", err: errnoInvalidHandle, want: true},
		{name: "out of memory", err: errnoNotEnoughMemory, want: true},
		{name: "wrapped invalid handle", err: fmt.Errorf("ReadDirectoryChangesW: %w", errnoInvalidHandle), want: true},
		{name: "access denied", err: syscall.Errno(5), want: false},
		{name: "plain error", err: fmt.Errorf("queue overflow"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isFatalFsnotifyError(tt.err); got != tt.want {
				t.Errorf("isFatalFsnotifyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
