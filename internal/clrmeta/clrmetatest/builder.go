// SPDX-License-Identifier: MPL-2.0

// Package clrmetatest builds minimal managed PE images for tests. The images
// carry just enough metadata (Module, TypeRef, TypeDef, MemberRef,
// CustomAttribute and NestedClass tables) for cmdlet discovery to run against
// them; they contain no IL and cannot be executed.
package clrmetatest

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	fileAlignment    = 0x200
	sectionAlignment = 0x2000
	peHeaderOffset   = 0x80
	cliHeaderSize    = 72

	typePublic       = 0x00000001
	typeNestedPublic = 0x00000002
	typeNestedPriv   = 0x00000003
	typeBeforeInit   = 0x00100000

	// TypeRef rows emitted into every image.
	refCmdletAttribute = 1
	refPSCmdlet        = 2
	refObsolete        = 3

	// MemberRef rows emitted into every image.
	memberCmdletCtor   = 1
	memberObsoleteCtor = 2
)

// Cmdlet describes a type carrying a CmdletAttribute.
type Cmdlet struct {
	// Namespace and Name of the implementing type. Name may be empty when
	// the type should be named after the command.
	Namespace string
	Name      string
	Verb      string
	Noun      string

	// Outer, when set, nests the type inside a public type of that name in
	// Namespace.
	Outer string

	NonPublic          bool
	MalformedAttribute bool
}

// TypeName returns the reflection-style name the cmdlet's type will have.
func (c Cmdlet) TypeName() string {
	name := c.typeName()
	if c.Outer != "" {
		return qualify(c.Namespace, c.Outer) + "+" + name
	}
	return qualify(c.Namespace, name)
}

func (c Cmdlet) typeName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Verb + c.Noun + "Command"
}

// Assembly describes the contents of a built image.
type Assembly struct {
	// Module is the module name recorded in the Module table.
	Module  string
	Cmdlets []Cmdlet
	// PlainTypes are qualified names of public types without a cmdlet
	// attribute. Each carries an ObsoleteAttribute so that unrelated custom
	// attributes are present in the image.
	PlainTypes []string
	// Native omits the CLI header, producing an unmanaged PE image.
	Native bool
}

// Write builds a and writes it to path, creating parent directories.
func Write(t testing.TB, path string, a Assembly) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, Build(a), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Build returns the bytes of a PE image described by a.
func Build(a Assembly) []byte {
	var section []byte
	if !a.Native {
		md := buildMetadata(a)
		section = make([]byte, cliHeaderSize, cliHeaderSize+len(md))
		le := binary.LittleEndian
		le.PutUint32(section[0:], cliHeaderSize)
		le.PutUint16(section[4:], 2)
		le.PutUint16(section[6:], 5)
		le.PutUint32(section[8:], sectionAlignment+cliHeaderSize)
		le.PutUint32(section[12:], uint32(len(md)))
		le.PutUint32(section[16:], 1) // COMIMAGE_FLAGS_ILONLY
		section = append(section, md...)
	} else {
		section = make([]byte, 16)
	}
	return buildPE(section, !a.Native)
}

func buildPE(section []byte, managed bool) []byte {
	rawSize := align(len(section), fileAlignment)

	var buf bytes.Buffer
	dos := make([]byte, peHeaderOffset)
	dos[0], dos[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(dos[0x3C:], peHeaderOffset)
	buf.Write(dos)
	buf.WriteString("PE\x00\x00")

	fh := pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_I386,
		NumberOfSections:     1,
		SizeOfOptionalHeader: 224,
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_32BIT_MACHINE | pe.IMAGE_FILE_DLL,
	}
	mustWrite(&buf, fh)

	oh := pe.OptionalHeader32{
		Magic:                 0x10b,
		SizeOfCode:            uint32(rawSize),
		BaseOfCode:            sectionAlignment,
		ImageBase:             0x10000000,
		SectionAlignment:      sectionAlignment,
		FileAlignment:         fileAlignment,
		MajorSubsystemVersion: 4,
		SizeOfImage:           sectionAlignment + uint32(align(len(section), sectionAlignment)),
		SizeOfHeaders:         fileAlignment,
		Subsystem:             pe.IMAGE_SUBSYSTEM_WINDOWS_CUI,
		NumberOfRvaAndSizes:   16,
	}
	if managed {
		oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR] = pe.DataDirectory{
			VirtualAddress: sectionAlignment,
			Size:           cliHeaderSize,
		}
	}
	mustWrite(&buf, oh)

	sh := pe.SectionHeader32{
		VirtualSize:      uint32(len(section)),
		VirtualAddress:   sectionAlignment,
		SizeOfRawData:    uint32(rawSize),
		PointerToRawData: fileAlignment,
		Characteristics:  pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE | pe.IMAGE_SCN_MEM_READ,
	}
	copy(sh.Name[:], ".text")
	mustWrite(&buf, sh)

	buf.Write(make([]byte, fileAlignment-buf.Len()))
	buf.Write(section)
	buf.Write(make([]byte, rawSize-len(section)))
	return buf.Bytes()
}

// heaps accumulates the #Strings and #Blob heaps.
type heaps struct {
	strings   []byte
	stringIdx map[string]uint16
	blob      []byte
}

func newHeaps() *heaps {
	return &heaps{strings: []byte{0}, stringIdx: map[string]uint16{"": 0}, blob: []byte{0}}
}

func (h *heaps) str(s string) uint16 {
	if off, ok := h.stringIdx[s]; ok {
		return off
	}
	off := uint16(len(h.strings))
	h.strings = append(h.strings, s...)
	h.strings = append(h.strings, 0)
	h.stringIdx[s] = off
	return off
}

func (h *heaps) addBlob(b []byte) uint16 {
	off := uint16(len(h.blob))
	h.blob = append(h.blob, compress(uint32(len(b)))...)
	h.blob = append(h.blob, b...)
	return off
}

// rows is a little-endian table writer where every column is two bytes wide
// except TypeDef flags.
type rows struct {
	count int
	data  bytes.Buffer
}

func (r *rows) row(cols ...uint16) {
	r.count++
	for _, c := range cols {
		_ = binary.Write(&r.data, binary.LittleEndian, c)
	}
}

func (r *rows) typeDef(flags uint32, cols ...uint16) {
	_ = binary.Write(&r.data, binary.LittleEndian, flags)
	r.row(cols...)
}

func buildMetadata(a Assembly) []byte {
	h := newHeaps()
	var module, typeRefs, typeDefs, memberRefs, attrs, nested rows

	moduleName := a.Module
	if moduleName == "" {
		moduleName = "Fixture.dll"
	}
	module.row(0, h.str(moduleName), 1, 0, 0)

	const sma = "System.Management.Automation"
	scope := uint16(1 << 2) // Module row 1
	typeRefs.row(scope, h.str("CmdletAttribute"), h.str(sma))
	typeRefs.row(scope, h.str("PSCmdlet"), h.str(sma))
	typeRefs.row(scope, h.str("ObsoleteAttribute"), h.str("System"))

	cmdletSig := h.addBlob([]byte{0x20, 0x02, 0x01, 0x0E, 0x0E})
	obsoleteSig := h.addBlob([]byte{0x20, 0x00, 0x01})
	memberRefs.row(refCmdletAttribute<<3|1, h.str(".ctor"), cmdletSig)
	memberRefs.row(refObsolete<<3|1, h.str(".ctor"), obsoleteSig)

	typeDefs.typeDef(0, h.str("<Module>"), 0, 0, 1, 1)
	nextRow := uint16(2)
	outers := make(map[string]uint16)

	addType := func(flags uint32, name, ns string, extends uint16) uint16 {
		row := nextRow
		nextRow++
		typeDefs.typeDef(flags, h.str(name), h.str(ns), extends, 1, 1)
		return row
	}
	addAttr := func(parent uint16, ctor uint16, value []byte) {
		attrs.row(parent<<5|3, ctor<<3|3, h.addBlob(value))
	}

	for _, c := range a.Cmdlets {
		var row uint16
		if c.Outer != "" {
			key := c.Namespace + "." + c.Outer
			outer, ok := outers[key]
			if !ok {
				outer = addType(typePublic|typeBeforeInit, c.Outer, c.Namespace, 0)
				outers[key] = outer
			}
			flags := uint32(typeNestedPublic)
			if c.NonPublic {
				flags = typeNestedPriv
			}
			row = addType(flags|typeBeforeInit, c.typeName(), "", refPSCmdlet<<2|1)
			nested.row(row, outer)
		} else {
			flags := uint32(typePublic)
			if c.NonPublic {
				flags = 0
			}
			row = addType(flags|typeBeforeInit, c.typeName(), c.Namespace, refPSCmdlet<<2|1)
		}
		addAttr(row, memberCmdletCtor, cmdletValue(c))
	}

	for _, qn := range a.PlainTypes {
		ns, name := split(qn)
		row := addType(typePublic|typeBeforeInit, name, ns, 0)
		addAttr(row, memberObsoleteCtor, []byte{0x01, 0x00, 0x00, 0x00})
	}

	guid := []byte{
		0x78, 0x56, 0x34, 0x12, 0x34, 0x12, 0x78, 0x56,
		0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78,
	}

	type tbl struct {
		id   uint
		rows *rows
	}
	ordered := []tbl{
		{0x00, &module},
		{0x01, &typeRefs},
		{0x02, &typeDefs},
		{0x0A, &memberRefs},
		{0x0C, &attrs},
		{0x29, &nested},
	}

	var tables bytes.Buffer
	var valid uint64
	for _, t := range ordered {
		if t.rows.count > 0 {
			valid |= 1 << t.id
		}
	}
	tables.Write([]byte{0, 0, 0, 0, 2, 0, 0, 1})
	_ = binary.Write(&tables, binary.LittleEndian, valid)
	_ = binary.Write(&tables, binary.LittleEndian, uint64(0))
	for _, t := range ordered {
		if t.rows.count > 0 {
			_ = binary.Write(&tables, binary.LittleEndian, uint32(t.rows.count))
		}
	}
	for _, t := range ordered {
		tables.Write(t.rows.data.Bytes())
	}

	streams := []struct {
		name string
		data []byte
	}{
		{"#~", pad4(tables.Bytes())},
		{"#Strings", pad4(h.strings)},
		{"#GUID", guid},
		{"#Blob", pad4(h.blob)},
	}

	version := "v4.0.30319"
	versionLen := align(len(version)+1, 4)
	headerLen := 16 + versionLen + 4
	for _, s := range streams {
		headerLen += 8 + align(len(s.name)+1, 4)
	}

	var md bytes.Buffer
	_ = binary.Write(&md, binary.LittleEndian, uint32(0x424A5342))
	_ = binary.Write(&md, binary.LittleEndian, uint16(1))
	_ = binary.Write(&md, binary.LittleEndian, uint16(1))
	_ = binary.Write(&md, binary.LittleEndian, uint32(0))
	_ = binary.Write(&md, binary.LittleEndian, uint32(versionLen))
	md.WriteString(version)
	md.Write(make([]byte, versionLen-len(version)))
	_ = binary.Write(&md, binary.LittleEndian, uint16(0))
	_ = binary.Write(&md, binary.LittleEndian, uint16(len(streams)))

	offset := headerLen
	for _, s := range streams {
		_ = binary.Write(&md, binary.LittleEndian, uint32(offset))
		_ = binary.Write(&md, binary.LittleEndian, uint32(len(s.data)))
		md.WriteString(s.name)
		md.Write(make([]byte, align(len(s.name)+1, 4)-len(s.name)))
		offset += len(s.data)
	}
	for _, s := range streams {
		md.Write(s.data)
	}
	return md.Bytes()
}

func cmdletValue(c Cmdlet) []byte {
	if c.MalformedAttribute {
		// Declares a five-byte verb but stops after two.
		return []byte{0x01, 0x00, 0x05, 'G', 'e'}
	}
	v := []byte{0x01, 0x00}
	v = append(v, serString(c.Verb)...)
	v = append(v, serString(c.Noun)...)
	return append(v, 0x00, 0x00)
}

func serString(s string) []byte {
	return append(compress(uint32(len(s))), s...)
}

func compress(n uint32) []byte {
	switch {
	case n < 0x80:
		return []byte{byte(n)}
	case n < 0x4000:
		return []byte{byte(n>>8) | 0x80, byte(n)}
	default:
		return []byte{byte(n>>24) | 0xC0, byte(n >> 16), byte(n >> 8), byte(n)}
	}
}

func split(qualified string) (ns, name string) {
	i := strings.LastIndexByte(qualified, '.')
	if i < 0 {
		return "", qualified
	}
	return qualified[:i], qualified[i+1:]
}

func qualify(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + "." + name
}

func pad4(b []byte) []byte {
	return append(b, make([]byte, align(len(b), 4)-len(b))...)
}

func align(n, to int) int {
	return (n + to - 1) / to * to
}

func mustWrite(buf *bytes.Buffer, v any) {
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		panic(err)
	}
}
