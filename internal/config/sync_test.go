// SPDX-License-Identifier: MPL-2.0

package config

import (
	"reflect"
	"strings"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// These tests keep the Go struct JSON tags and config_schema.cue in step, so a
// field added to one side cannot be silently ignored by the other.

// extractCUEFields returns the regular (non-definition, non-hidden) field
// names of a CUE struct definition.
func extractCUEFields(t *testing.T, val cue.Value) map[string]bool {
	t.Helper()

	fields := make(map[string]bool)
	iter, err := val.Fields(cue.Definitions(false), cue.Optional(true))
	if err != nil {
		t.Fatalf("failed to iterate CUE fields: %v", err)
	}
	for iter.Next() {
		sel := iter.Selector()
		if sel.LabelType().IsHidden() || sel.IsDefinition() {
			continue
		}
		fields[strings.TrimSuffix(sel.String(), "?")] = true
	}
	return fields
}

// extractGoJSONTags returns the JSON names of the exported fields of a struct.
func extractGoJSONTags(t *testing.T, typ reflect.Type) map[string]bool {
	t.Helper()

	if typ.Kind() != reflect.Struct {
		t.Fatalf("expected struct type, got %s", typ.Kind())
	}

	fields := make(map[string]bool)
	for i := range typ.NumField() {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		fields[name] = true
	}
	return fields
}

func getCUESchema(t *testing.T) cue.Value {
	t.Helper()

	schema := cuecontext.New().CompileString(configSchema)
	if schema.Err() != nil {
		t.Fatalf("failed to compile CUE schema: %v", schema.Err())
	}
	return schema
}

func TestSchemaSync(t *testing.T) {
	t.Parallel()

	schema := getCUESchema(t)
	tests := []struct {
		definition string
		typ        reflect.Type
	}{
		{"#Config", reflect.TypeFor[Config]()},
		{"#ScanConfig", reflect.TypeFor[ScanConfig]()},
		{"#LoaderConfig", reflect.TypeFor[LoaderConfig]()},
		{"#ReportConfig", reflect.TypeFor[ReportConfig]()},
		{"#UIConfig", reflect.TypeFor[UIConfig]()},
	}

	for _, tt := range tests {
		t.Run(tt.definition, func(t *testing.T) {
			t.Parallel()

			def := schema.LookupPath(cue.ParsePath(tt.definition))
			if def.Err() != nil {
				t.Fatalf("failed to lookup %s: %v", tt.definition, def.Err())
			}
			cueFields := extractCUEFields(t, def)
			goFields := extractGoJSONTags(t, tt.typ)

			for field := range cueFields {
				if !goFields[field] {
					t.Errorf("CUE field %q has no Go field in %s", field, tt.typ.Name())
				}
			}
			for field := range goFields {
				if !cueFields[field] {
					t.Errorf("Go field %q of %s is missing from %s", field, tt.typ.Name(), tt.definition)
				}
			}
		})
	}
}

// validateCUE unifies data with #Config and requires concrete values.
func validateCUE(t *testing.T, data string) error {
	t.Helper()

	ctx := cuecontext.New()
	schema := ctx.CompileString(configSchema).LookupPath(cue.ParsePath("#Config"))
	user := ctx.CompileString(data)
	if user.Err() != nil {
		return user.Err()
	}
	return schema.Unify(user).Validate(cue.Concrete(true))
}

func TestSchemaConstraints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"empty", ``, false},
		{"custom suffix", `scan: {help_suffix: ".help", binary_ext: ".so"}`, false},
		{"suffix with separator", `scan: help_suffix: "x/-Help.xml"`, true},
		{"ext without dot", `scan: binary_ext: "dll"`, true},
		{"ext with path", `scan: binary_ext: ".d/ll"`, true},
		{"jobs min", `scan: jobs: 1`, false},
		{"jobs max", `scan: jobs: 64`, false},
		{"jobs string", `scan: jobs: "4"`, true},
		{"empty root", `scan: roots: [""]`, true},
		{"compound timeout", `loader: timeout: "1m30s"`, false},
		{"fractional timeout", `loader: timeout: "1.5s"`, false},
		{"unitless timeout", `loader: timeout: "30"`, true},
		{"unknown isolation", `loader: isolation: "container"`, true},
		{"markdown", `report: format: "markdown"`, false},
		{"verbose string", `ui: verbose: "yes"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := validateCUE(t, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate(%q) error = %v, wantErr %v", tt.data, err, tt.wantErr)
			}
		})
	}
}
