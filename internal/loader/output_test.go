// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"io"
	"strings"
	"testing"
)

func TestCappedBuffer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		limit         int
		writes        []string
		want          string
		wantTruncated bool
	}{
		{name: "under limit", limit: 8, writes: []string{"abc", "de"}, want: "abcde"},
		{name: "exactly at limit", limit: 5, writes: []string{"abc", "de"}, want: "abcde"},
		{name: "split write", limit: 4, writes: []string{"abc", "def"}, want: "abcd", wantTruncated: true},
		{name: "write after full", limit: 3, writes: []string{"abc", "d", "e"}, want: "abc", wantTruncated: true},
		{name: "zero limit", limit: 0, writes: []string{"a"}, want: "", wantTruncated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := newCappedBuffer(tt.limit)
			for _, w := range tt.writes {
				n, err := io.WriteString(b, w)
				if err != nil || n != len(w) {
					t.Fatalf("Write(%q) = %d, %v; want %d, nil", w, n, err, len(w))
				}
			}
			if got := b.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if b.Truncated() != tt.wantTruncated {
				t.Errorf("Truncated() = %v, want %v", b.Truncated(), tt.wantTruncated)
			}
		})
	}
}

func TestOutputTooLarge(t *testing.T) {
	t.Parallel()

	err := outputTooLarge("worker output", 10)
	if !strings.Contains(err.Error(), "worker output exceeds 10 bytes") {
		t.Errorf("outputTooLarge() = %q", err)
	}
}
