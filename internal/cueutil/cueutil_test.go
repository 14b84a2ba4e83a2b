// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

const testSchema = `
#Settings: close({
	name?:  string & !=""
	jobs?:  int & >=1
	roots?: [...string & !=""]
})
`

type settings struct {
	Name  string   `json:"name"`
	Jobs  int      `json:"jobs"`
	Roots []string `json:"roots"`
}

func TestParseAndDecodeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		opts    []Option
		want    settings
		wantErr string
	}{
		{
			name: "valid",
			data: `name: "audit", jobs: 4, roots: ["a", "b"]`,
			want: settings{Name: "audit", Jobs: 4, Roots: []string{"a", "b"}},
		},
		{
			name: "optional fields may be omitted",
			data: `jobs: 2`,
			opts: []Option{WithConcrete(false)},
			want: settings{Jobs: 2},
		},
		{
			name:    "constraint violation names the field",
			data:    `jobs: 0`,
			opts:    []Option{WithFilename("settings.cue")},
			wantErr: "settings.cue: jobs:",
		},
		{
			name:    "list elements use index notation",
			data:    `roots: ["a", ""]`,
			opts:    []Option{WithFilename("settings.cue")},
			wantErr: "roots[1]",
		},
		{
			name:    "closed definition rejects unknown fields",
			data:    `color: "red"`,
			wantErr: "<input>:",
		},
		{
			name:    "syntax error",
			data:    `name: `,
			opts:    []Option{WithFilename("broken.cue")},
			wantErr: "broken.cue",
		},
		{
			name:    "size limit",
			data:    `name: "a long enough value"`,
			opts:    []Option{WithMaxFileSize(8)},
			wantErr: "exceeds maximum 8 bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := ParseAndDecodeString[settings](testSchema, []byte(tt.data), "#Settings", tt.opts...)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAndDecodeString() error: %v", err)
			}
			got := *res.Value
			if got.Name != tt.want.Name || got.Jobs != tt.want.Jobs || strings.Join(got.Roots, ",") != strings.Join(tt.want.Roots, ",") {
				t.Errorf("decoded %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseAndDecode_ErrorNamesFileOnce(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecodeString[settings](testSchema, []byte(`jobs: 0`), "#Settings", WithFilename("settings.cue"))
	if err == nil {
		t.Fatal("expected a validation error")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "settings.cue: jobs: ") {
		t.Errorf("error = %q, want prefix %q", msg, "settings.cue: jobs: ")
	}
	if strings.Count(msg, "settings.cue") != 1 {
		t.Errorf("error names the file more than once: %q", msg)
	}
	if strings.Contains(msg, "#Settings") {
		t.Errorf("error leaks the schema definition: %q", msg)
	}
}

func TestTrimDefinition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"#Config"}, ""},
		{[]string{"#Config", "scan", "jobs"}, "scan.jobs"},
		{[]string{"scan", "jobs"}, "scan.jobs"},
	}
	for _, tt := range tests {
		if got := formatPath(trimDefinition(tt.path)); got != tt.want {
			t.Errorf("formatPath(trimDefinition(%q)) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParseAndDecode_MissingDefinition(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecodeString[settings](testSchema, []byte(`name: "x"`), "#Nope")
	if err == nil || !strings.Contains(err.Error(), "schema definition #Nope not found") {
		t.Errorf("error = %v", err)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"scan"}, "scan"},
		{[]string{"scan", "roots", "1"}, "scan.roots[1]"},
		{[]string{"0", "name"}, "0.name"},
		{[]string{"a", "12", "b", "3"}, "a[12].b[3]"},
	}
	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestFormatError_NonCUE(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")
	err := FormatError(base, "config.cue")
	if !errors.Is(err, base) {
		t.Errorf("FormatError() = %v, want it to wrap %v", err, base)
	}
	if err.Error() != "config.cue: boom" {
		t.Errorf("FormatError() = %q, want %q", err.Error(), "config.cue: boom")
	}
	if FormatError(nil, "config.cue") != nil {
		t.Error("FormatError(nil) must be nil")
	}
}
