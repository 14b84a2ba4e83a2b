// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "load baseline"},
			expected: "failed to load baseline",
		},
		{
			name: "operation with resource",
			err: &ActionableError{
				Operation: "load baseline",
				Resource:  "./helpaudit-baseline.toml",
			},
			expected: "failed to load baseline: ./helpaudit-baseline.toml",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "create report",
				Resource:  "out/HelpIssues.csv",
				Cause:     errors.New("permission denied"),
			},
			expected: "failed to create report: out/HelpIssues.csv: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_ErrorsIs(t *testing.T) {
	cause := errors.New("specific error")
	wrapped := &ActionableError{Operation: "test", Cause: fmt.Errorf("outer: %w", cause)}

	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if (&ActionableError{Operation: "test"}).Unwrap() != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestActionableError_Format(t *testing.T) {
	tests := []struct {
		name     string
		err      *ActionableError
		verbose  bool
		contains []string
		excludes []string
	}{
		{
			name: "suggestions listed",
			err: &ActionableError{
				Operation:   "load configuration",
				Suggestions: []string{"Check the CUE syntax", "Run 'helpaudit config show'"},
			},
			contains: []string{"failed to load configuration", "• Check the CUE syntax", "• Run 'helpaudit config show'"},
			excludes: []string{"explain", "Error chain"},
		},
		{
			name: "issue link",
			err: &ActionableError{
				Operation: "load configuration",
				Issue:     ConfigLoadFailedId,
			},
			contains: []string{"• Run 'helpaudit explain config-load-failed' for details"},
		},
		{
			name: "verbose chain",
			err: &ActionableError{
				Operation: "inspect",
				Cause:     fmt.Errorf("worker: %w", errors.New("exit status 1")),
			},
			verbose:  true,
			contains: []string{"Error chain:", "1. worker: exit status 1", "2. exit status 1"},
		},
		{
			name: "chain hidden when not verbose",
			err: &ActionableError{
				Operation: "inspect",
				Cause:     errors.New("exit status 1"),
			},
			excludes: []string{"Error chain:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Format(tt.verbose)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Format() missing %q:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("Format() should not contain %q:\n%s", unwanted, got)
				}
			}
		})
	}
}

func TestActionableError_FormatDoesNotMutateSuggestions(t *testing.T) {
	suggestions := make([]string, 1, 4)
	suggestions[0] = "first"
	err := &ActionableError{Operation: "x", Suggestions: suggestions, Issue: WorkerTimeoutId}

	_ = err.Format(false)
	_ = err.Format(false)
	if len(err.Suggestions) != 1 || strings.Count(err.Format(false), "explain") != 1 {
		t.Errorf("Format() changed suggestions: %q", err.Suggestions)
	}
}

func TestErrorContext_Build(t *testing.T) {
	cause := errors.New("boom")
	ae := NewErrorContext().
		WithOperation("write report").
		WithResource("HelpIssues.csv").
		WithSuggestion("one").
		WithSuggestion("two").
		WithIssue(ReportWriteFailedId).
		Wrap(cause).
		Build()

	if ae == nil {
		t.Fatal("Build() returned nil")
	}
	if ae.Operation != "write report" || ae.Resource != "HelpIssues.csv" || ae.Issue != ReportWriteFailedId {
		t.Errorf("unexpected fields: %+v", ae)
	}
	if len(ae.Suggestions) != 2 || !errors.Is(ae, cause) {
		t.Errorf("suggestions = %q, cause = %v", ae.Suggestions, ae.Cause)
	}

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without an operation should return nil")
	}
	if NewErrorContext().BuildError() != nil {
		t.Error("BuildError() without an operation should return a nil error")
	}
}

func TestWrapWithContext(t *testing.T) {
	if WrapWithContext(nil, "op", "res") != nil {
		t.Error("WrapWithContext(nil) should return nil")
	}
	err := WrapWithContext(errors.New("denied"), "read root", "/opt/modules")
	if err.Error() != "failed to read root: /opt/modules: denied" {
		t.Errorf("Error() = %q", err.Error())
	}
}
