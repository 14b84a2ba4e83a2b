// SPDX-License-Identifier: MPL-2.0

package clrmeta

import (
	"bytes"
	"fmt"
	"io"
)

// Metadata table identifiers (ECMA-335 II.22).
const (
	TableModule                 TableID = 0x00
	TableTypeRef                TableID = 0x01
	TableTypeDef                TableID = 0x02
	TableField                  TableID = 0x04
	TableMethodDef              TableID = 0x06
	TableParam                  TableID = 0x08
	TableInterfaceImpl          TableID = 0x09
	TableMemberRef              TableID = 0x0A
	TableCustomAttribute        TableID = 0x0C
	TableDeclSecurity           TableID = 0x0E
	TableStandAloneSig          TableID = 0x11
	TableEvent                  TableID = 0x14
	TableProperty               TableID = 0x17
	TableModuleRef              TableID = 0x1A
	TableTypeSpec               TableID = 0x1B
	TableAssembly               TableID = 0x20
	TableAssemblyRef            TableID = 0x23
	TableFile                   TableID = 0x26
	TableExportedType           TableID = 0x27
	TableManifestResource       TableID = 0x28
	TableNestedClass            TableID = 0x29
	TableGenericParam           TableID = 0x2A
	TableMethodSpec             TableID = 0x2B
	TableGenericParamConstraint TableID = 0x2C

	// tableNone marks an unused coded index tag.
	tableNone TableID = 0xFF
)

type (
	// TableID identifies a metadata table.
	TableID uint8

	// Token addresses a single row. Row is 1-based; zero means "no row".
	Token struct {
		Table TableID
		Row   uint32
	}

	// codedKind describes a coded index (ECMA-335 II.24.2.6): the low bits
	// select a table and the remaining bits are the row.
	codedKind struct {
		bits   uint
		tables []TableID
	}
)

var (
	codedMemberRefParent     = &codedKind{3, []TableID{TableTypeDef, TableTypeRef, TableModuleRef, TableMethodDef, TableTypeSpec}}
	codedCustomAttributeType = &codedKind{3, []TableID{tableNone, tableNone, TableMethodDef, TableMemberRef, tableNone}}
	codedResolutionScope     = &codedKind{2, []TableID{TableModule, TableModuleRef, TableAssemblyRef, TableTypeRef}}
)

var codedHasCustomAttribute = &codedKind{5, []TableID{
	TableMethodDef, TableField, TableTypeRef, TableTypeDef, TableParam,
	TableInterfaceImpl, TableMemberRef, TableModule, TableDeclSecurity, TableProperty,
	TableEvent, TableStandAloneSig, TableModuleRef, TableTypeSpec, TableAssembly,
	TableAssemblyRef, TableFile, TableExportedType, TableManifestResource,
	TableGenericParam, TableGenericParamConstraint, TableMethodSpec,
}}

// decode splits a coded index value into its target token.
func (k *codedKind) decode(v uint32) (Token, bool) {
	mask := uint32(1)<<k.bits - 1
	tag := v & mask
	if int(tag) >= len(k.tables) || k.tables[tag] == tableNone {
		return Token{}, false
	}
	return Token{Table: k.tables[tag], Row: v >> k.bits}, true
}

// str returns the #Strings heap entry at offset.
func (img *Image) str(offset uint32) (string, error) {
	if offset == 0 {
		return "", nil
	}
	if uint64(offset) >= uint64(len(img.strings)) {
		return "", malformed("#Strings", "offset %d out of range", offset)
	}
	end := bytes.IndexByte(img.strings[offset:], 0)
	if end < 0 {
		return "", malformed("#Strings", "unterminated string at %d", offset)
	}
	return string(img.strings[offset : int(offset)+end]), nil
}

// blobAt returns the #Blob heap entry at offset, without its length prefix.
func (img *Image) blobAt(offset uint32) ([]byte, error) {
	if uint64(offset) >= uint64(len(img.blob)) {
		return nil, malformed("#Blob", "offset %d out of range", offset)
	}
	length, n, err := uncompress(img.blob[offset:])
	if err != nil {
		return nil, malformed("#Blob", "entry at %d: %v", offset, err)
	}
	start := int(offset) + n
	if uint64(start)+uint64(length) > uint64(len(img.blob)) {
		return nil, malformed("#Blob", "entry at %d overruns heap", offset)
	}
	return img.blob[start : start+int(length)], nil
}

// uncompress decodes an ECMA-335 compressed unsigned integer and returns the
// value and the number of bytes consumed.
func uncompress(b []byte) (uint32, int, error) {
	if len(b) == 0 {
		return 0, 0, io.ErrUnexpectedEOF
	}
	switch {
	case b[0]&0x80 == 0:
		return uint32(b[0]), 1, nil
	case b[0]&0xC0 == 0x80:
		if len(b) < 2 {
			return 0, 0, io.ErrUnexpectedEOF
		}
		return uint32(b[0]&0x3F)<<8 | uint32(b[1]), 2, nil
	case b[0]&0xE0 == 0xC0:
		if len(b) < 4 {
			return 0, 0, io.ErrUnexpectedEOF
		}
		return uint32(b[0]&0x1F)<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), 4, nil
	default:
		return 0, 0, fmt.Errorf("invalid compressed integer lead byte %#x", b[0])
	}
}
