// SPDX-License-Identifier: MPL-2.0

package clrmeta

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	peparser "github.com/saferwall/pe"
)

// Element types used in signatures (ECMA-335 II.23.1.16).
const (
	ElementVoid   byte = 0x01
	ElementString byte = 0x0E
)

const (
	sigGeneric    byte = 0x10
	attrProlog         = 0x0001
	nullSerString      = 0xFF
)

// CustomAttribute is one row of the CustomAttribute table.
type CustomAttribute struct {
	Row         uint32
	Parent      Token
	Constructor Token
	Value       []byte
}

// CustomAttributes returns every row of the CustomAttribute table. A row whose
// parent or constructor cannot be decoded is returned as an error for that row
// only; the caller decides whether to continue.
func (img *Image) CustomAttributes() ([]CustomAttribute, []error) {
	attrs := make([]CustomAttribute, 0, len(img.customAttrs))
	var errs []error
	for i, row := range img.customAttrs {
		ca, err := img.customAttribute(uint32(i+1), row)
		if err != nil {
			errs = append(errs, fmt.Errorf("custom attribute %d: %w", i+1, err))
			continue
		}
		attrs = append(attrs, ca)
	}
	return attrs, errs
}

func (img *Image) customAttribute(row uint32, raw peparser.CustomAttributeTableRow) (CustomAttribute, error) {
	parent, ok := codedHasCustomAttribute.decode(raw.Parent)
	if !ok {
		return CustomAttribute{}, malformed("CustomAttribute", "invalid parent %#x", raw.Parent)
	}
	ctor, ok := codedCustomAttributeType.decode(raw.Type)
	if !ok {
		return CustomAttribute{}, malformed("CustomAttribute", "invalid constructor %#x", raw.Type)
	}
	value, err := img.blobAt(raw.Value)
	if err != nil {
		return CustomAttribute{}, err
	}
	return CustomAttribute{Row: row, Parent: parent, Constructor: ctor, Value: value}, nil
}

// AttributeType resolves the type that declares the attribute's constructor.
func (img *Image) AttributeType(ca CustomAttribute) (namespace, name string, err error) {
	switch ca.Constructor.Table {
	case TableMemberRef:
		ref, err := rowAt(img.memberRefs, TableMemberRef, ca.Constructor.Row)
		if err != nil {
			return "", "", err
		}
		class, ok := codedMemberRefParent.decode(ref.Class)
		if !ok {
			return "", "", malformed("MemberRef", "invalid class %#x", ref.Class)
		}
		if class.Table != TableTypeRef && class.Table != TableTypeDef {
			return "", "", malformed("MemberRef", "constructor parent in table %#x is not a type", class.Table)
		}
		return img.typeName(class)
	case TableMethodDef:
		owner, err := img.methodOwner(ca.Constructor.Row)
		if err != nil {
			return "", "", err
		}
		return img.typeName(Token{Table: TableTypeDef, Row: owner})
	default:
		return "", "", malformed("CustomAttribute", "constructor in table %#x", ca.Constructor.Table)
	}
}

// methodOwner finds the TypeDef whose method list contains the MethodDef row.
func (img *Image) methodOwner(method uint32) (uint32, error) {
	if method == 0 || uint64(method) > uint64(len(img.methodDefs)) {
		return 0, malformed("MethodDef", "row %d out of range", method)
	}
	for row := len(img.typeDefs); row >= 1; row-- {
		if img.typeDefs[row-1].MethodList <= method {
			return uint32(row), nil
		}
	}
	return 0, malformed("MethodDef", "row %d has no owning type", method)
}

// ConstructorParams returns the element types of the attribute constructor's
// parameters. Decoding stops at the first parameter that is not a primitive or
// string; that parameter is reported by its lead byte.
func (img *Image) ConstructorParams(ca CustomAttribute) ([]byte, error) {
	var sigOffset uint32
	switch ca.Constructor.Table {
	case TableMemberRef:
		ref, err := rowAt(img.memberRefs, TableMemberRef, ca.Constructor.Row)
		if err != nil {
			return nil, err
		}
		sigOffset = ref.Signature
	case TableMethodDef:
		def, err := rowAt(img.methodDefs, TableMethodDef, ca.Constructor.Row)
		if err != nil {
			return nil, err
		}
		sigOffset = def.Signature
	default:
		return nil, malformed("CustomAttribute", "constructor in table %#x", ca.Constructor.Table)
	}
	sig, err := img.blobAt(sigOffset)
	if err != nil {
		return nil, err
	}
	return methodParams(sig)
}

func methodParams(sig []byte) ([]byte, error) {
	if len(sig) < 3 {
		return nil, malformed("method signature", "too short (%d bytes)", len(sig))
	}
	pos := 1
	if sig[0]&sigGeneric != 0 {
		_, n, err := uncompress(sig[pos:])
		if err != nil {
			return nil, malformed("method signature", "generic count: %v", err)
		}
		pos += n
	}
	count, n, err := uncompress(sig[pos:])
	if err != nil {
		return nil, malformed("method signature", "param count: %v", err)
	}
	pos += n
	if pos >= len(sig) || sig[pos] != ElementVoid {
		return nil, malformed("method signature", "constructor must return void")
	}
	pos++
	if int(count) > len(sig)-pos {
		return nil, malformed("method signature", "declares %d params in %d bytes", count, len(sig)-pos)
	}
	params := make([]byte, 0, count)
	for _, b := range sig[pos : pos+int(count)] {
		params = append(params, b)
		if !simpleElement(b) {
			break
		}
	}
	return params, nil
}

// simpleElement reports whether b is a one-byte element type
// (bool through string, IntPtr, UIntPtr, or object).
func simpleElement(b byte) bool {
	return (b >= 0x02 && b <= ElementString) || b == 0x18 || b == 0x19 || b == 0x1C
}

// DecodeStringArgs decodes the first n fixed arguments of a custom attribute
// value blob as SerStrings. A null SerString decodes to "".
func DecodeStringArgs(value []byte, n int) ([]string, error) {
	if len(value) < 2 || binary.LittleEndian.Uint16(value) != attrProlog {
		return nil, malformed("custom attribute value", "missing prolog")
	}
	pos := 2
	args := make([]string, 0, n)
	for i := range n {
		if pos >= len(value) {
			return nil, malformed("custom attribute value", "argument %d missing", i)
		}
		if value[pos] == nullSerString {
			args = append(args, "")
			pos++
			continue
		}
		length, size, err := uncompress(value[pos:])
		if err != nil {
			return nil, malformed("custom attribute value", "argument %d length: %v", i, err)
		}
		pos += size
		if uint64(pos)+uint64(length) > uint64(len(value)) {
			return nil, malformed("custom attribute value", "argument %d overruns value (%d bytes)", i, length)
		}
		s := value[pos : pos+int(length)]
		if !utf8.Valid(s) {
			return nil, malformed("custom attribute value", "argument %d is not UTF-8", i)
		}
		args = append(args, string(s))
		pos += int(length)
	}
	return args, nil
}
