// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/helpaudit/helpaudit/internal/clrmeta"
)

const (
	// InspectorMetadata reads the assembly's ECMA-335 metadata.
	InspectorMetadata InspectorKind = "metadata"
	// InspectorScript delegates discovery to a user-supplied shell script.
	InspectorScript InspectorKind = "script"

	cmdletAttributeNamespace = "System.Management.Automation"
	cmdletAttributeName      = "CmdletAttribute"
)

// ErrInvalidInspectorKind is returned when an inspector kind is not recognized.
var ErrInvalidInspectorKind = errors.New("invalid inspector kind")

type (
	// InspectorKind selects how cmdlets are discovered in an assembly.
	InspectorKind string

	// InvalidInspectorKindError is returned when an InspectorKind is not recognized.
	InvalidInspectorKindError struct {
		Value InspectorKind
	}

	// Inspector finds the cmdlets declared by the assembly named file in dir.
	// Implementations resolve every path against dir and never change the
	// process working directory.
	Inspector interface {
		Inspect(ctx context.Context, dir, file string) (Result, error)
	}

	// MetadataInspector finds public types carrying
	// System.Management.Automation.CmdletAttribute without executing any code
	// from the assembly.
	MetadataInspector struct{}
)

// Error implements the error interface for InvalidInspectorKindError.
func (e *InvalidInspectorKindError) Error() string {
	return fmt.Sprintf("invalid inspector %q (valid: metadata, script)", e.Value)
}

// Unwrap returns ErrInvalidInspectorKind for errors.Is() compatibility.
func (e *InvalidInspectorKindError) Unwrap() error { return ErrInvalidInspectorKind }

// String returns the string representation of the InspectorKind.
func (k InspectorKind) String() string { return string(k) }

// IsValid returns whether the InspectorKind is one of the defined kinds,
// and a list of validation errors if it is not.
func (k InspectorKind) IsValid() (bool, []error) {
	switch k {
	case InspectorMetadata, InspectorScript:
		return true, nil
	default:
		return false, []error{&InvalidInspectorKindError{Value: k}}
	}
}

// NewInspector returns the inspector for kind. The script is only used by
// the script inspector.
func NewInspector(kind InspectorKind, script string) (Inspector, error) {
	if valid, errs := kind.IsValid(); !valid {
		return nil, errs[0]
	}
	if kind == InspectorScript {
		return NewScriptInspector(script)
	}
	return MetadataInspector{}, nil
}

type foundCmdlet struct {
	row uint32
	CommandMetadata
}

// Inspect implements Inspector.
func (MetadataInspector) Inspect(ctx context.Context, dir, file string) (Result, error) {
	img, err := clrmeta.Open(filepath.Join(dir, file))
	if err != nil {
		return Result{}, err
	}

	var res Result
	attrs, errs := img.CustomAttributes()
	for _, err := range errs {
		res.Warnings = append(res.Warnings, err.Error())
	}

	var found []foundCmdlet
	for _, ca := range attrs {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if ca.Parent.Table != clrmeta.TableTypeDef {
			continue
		}
		ns, name, err := img.AttributeType(ca)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("custom attribute %d: %v", ca.Row, err))
			continue
		}
		if ns != cmdletAttributeNamespace || name != cmdletAttributeName {
			continue
		}

		cmd, ok, err := cmdletFromAttribute(img, ca)
		if err != nil {
			res.Warnings = append(res.Warnings, err.Error())
			continue
		}
		if ok {
			found = append(found, foundCmdlet{row: ca.Parent.Row, CommandMetadata: cmd})
		}
	}

	slices.SortStableFunc(found, func(a, b foundCmdlet) int {
		return int(a.row) - int(b.row)
	})
	res.Commands = make([]CommandMetadata, 0, len(found))
	for _, f := range found {
		res.Commands = append(res.Commands, f.CommandMetadata)
	}
	return res, nil
}

// cmdletFromAttribute reads the verb and noun of a CmdletAttribute applied to
// a TypeDef. ok is false for types that are not visible outside the assembly.
func cmdletFromAttribute(img *clrmeta.Image, ca clrmeta.CustomAttribute) (cmd CommandMetadata, ok bool, err error) {
	row := ca.Parent.Row
	exported, err := img.Exported(row)
	if err != nil {
		return CommandMetadata{}, false, fmt.Errorf("type %d: %w", row, err)
	}
	if !exported {
		return CommandMetadata{}, false, nil
	}
	typeName, err := img.FullName(row)
	if err != nil {
		return CommandMetadata{}, false, fmt.Errorf("type %d: %w", row, err)
	}

	params, err := img.ConstructorParams(ca)
	if err != nil {
		return CommandMetadata{}, false, fmt.Errorf("%s: cmdlet attribute constructor: %w", typeName, err)
	}
	if len(params) < 2 || params[0] != clrmeta.ElementString || params[1] != clrmeta.ElementString {
		return CommandMetadata{}, false, fmt.Errorf("%s: cmdlet attribute constructor does not take (verb, noun) strings", typeName)
	}
	args, err := clrmeta.DecodeStringArgs(ca.Value, 2)
	if err != nil {
		return CommandMetadata{}, false, fmt.Errorf("%s: cmdlet attribute value: %w", typeName, err)
	}
	verb, noun := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
	if verb == "" || noun == "" {
		return CommandMetadata{}, false, fmt.Errorf("%s: cmdlet attribute has empty verb or noun", typeName)
	}

	return CommandMetadata{CommandName: verb + "-" + noun, TypeName: typeName}, true, nil
}
