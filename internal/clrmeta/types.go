// SPDX-License-Identifier: MPL-2.0

package clrmeta

import (
	"strings"

	peparser "github.com/saferwall/pe"
)

// TypeDef visibility flags (ECMA-335 II.23.1.15).
const (
	typeVisibilityMask = 0x00000007
	typePublic         = 0x00000001
	typeNestedPublic   = 0x00000002
)

func (img *Image) typeDef(row uint32) (peparser.TypeDefTableRow, error) {
	return rowAt(img.typeDefs, TableTypeDef, row)
}

// typeName returns the namespace and name of a TypeDef or TypeRef token.
func (img *Image) typeName(tok Token) (namespace, name string, err error) {
	switch tok.Table {
	case TableTypeDef:
		td, err := img.typeDef(tok.Row)
		if err != nil {
			return "", "", err
		}
		return img.names(td.TypeNamespace, td.TypeName)
	case TableTypeRef:
		tr, err := rowAt(img.typeRefs, TableTypeRef, tok.Row)
		if err != nil {
			return "", "", err
		}
		ns, name, err := img.names(tr.TypeNamespace, tr.TypeName)
		if err != nil {
			return "", "", err
		}
		// A nested TypeRef carries its namespace on the outermost reference.
		if ns == "" {
			if scope, ok := codedResolutionScope.decode(tr.ResolutionScope); ok && scope.Table == TableTypeRef && scope.Row != 0 && scope.Row != tok.Row {
				outerNS, outerName, err := img.typeName(scope)
				if err != nil {
					return "", "", err
				}
				return outerNS, outerName + "+" + name, nil
			}
		}
		return ns, name, nil
	default:
		return "", "", malformed("type token", "table %#x is not a type table", tok.Table)
	}
}

func (img *Image) names(nsOffset, nameOffset uint32) (namespace, name string, err error) {
	if namespace, err = img.str(nsOffset); err != nil {
		return "", "", err
	}
	if name, err = img.str(nameOffset); err != nil {
		return "", "", err
	}
	return namespace, name, nil
}

// enclosingType returns the TypeDef row enclosing the nested type at row, or
// zero when the type is not nested.
func (img *Image) enclosingType(row uint32) (uint32, error) {
	for _, n := range img.nested {
		if n.NestedClass != row {
			continue
		}
		if n.EnclosingClass == row {
			return 0, malformed("NestedClass", "type %d encloses itself", row)
		}
		return n.EnclosingClass, nil
	}
	return 0, nil
}

// FullName returns the reflection-style name of the TypeDef at row, joining
// nested types to their enclosing type with '+'.
func (img *Image) FullName(row uint32) (string, error) {
	var parts []string
	seen := make(map[uint32]bool)
	for cur := row; cur != 0; {
		if seen[cur] {
			return "", malformed("NestedClass", "cycle at type %d", cur)
		}
		seen[cur] = true

		ns, name, err := img.typeName(Token{Table: TableTypeDef, Row: cur})
		if err != nil {
			return "", err
		}
		outer, err := img.enclosingType(cur)
		if err != nil {
			return "", err
		}
		if outer == 0 && ns != "" {
			name = ns + "." + name
		}
		parts = append(parts, name)
		cur = outer
	}

	var sb strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		sb.WriteString(parts[i])
		if i > 0 {
			sb.WriteByte('+')
		}
	}
	return sb.String(), nil
}

// Exported reports whether the TypeDef at row and all of its enclosing types
// are visible outside the assembly.
func (img *Image) Exported(row uint32) (bool, error) {
	seen := make(map[uint32]bool)
	for cur := row; cur != 0; {
		if seen[cur] {
			return false, malformed("NestedClass", "cycle at type %d", cur)
		}
		seen[cur] = true

		td, err := img.typeDef(cur)
		if err != nil {
			return false, err
		}
		switch td.Flags & typeVisibilityMask {
		case typePublic, typeNestedPublic:
		default:
			return false, nil
		}
		outer, err := img.enclosingType(cur)
		if err != nil {
			return false, err
		}
		cur = outer
	}
	return true, nil
}
