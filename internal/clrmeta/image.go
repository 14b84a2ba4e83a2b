// SPDX-License-Identifier: MPL-2.0

package clrmeta

import (
	"errors"
	"fmt"
	"io"
	"os"

	peparser "github.com/saferwall/pe"
	pelog "github.com/saferwall/pe/log"
)

const (
	// metadataSignature is "BSJB" read as a little-endian uint32.
	metadataSignature = 0x424A5342

	// MaxImageSize bounds the file Open reads into memory.
	MaxImageSize = 256 << 20
)

// Image is the decoded metadata of one managed PE file.
type Image struct {
	strings []byte
	blob    []byte

	typeRefs    []peparser.TypeRefTableRow
	typeDefs    []peparser.TypeDefTableRow
	methodDefs  []peparser.MethodDefTableRow
	memberRefs  []peparser.MemberRefTableRow
	customAttrs []peparser.CustomAttributeTableRow
	nested      []peparser.NestedClassTableRow
}

// Open reads the managed PE image at path and decodes its metadata. The file
// is read in full and closed before decoding starts.
func Open(path string) (*Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxImageSize {
		return nil, malformed("PE", "%s: size %d exceeds limit %d", path, info.Size(), MaxImageSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse decodes the metadata of the PE image held in data. The name is used
// in error messages only.
func Parse(data []byte, name string) (*Image, error) {
	// Files created from a byte slice own no mapping or descriptor, so they
	// are not closed.
	f, err := peparser.NewBytes(data, &peparser.Options{Logger: pelog.NewStdLogger(io.Discard)})
	if err == nil {
		err = f.Parse()
	}
	if err != nil {
		return nil, fmt.Errorf("%s: not a PE image: %w", name, errors.Join(ErrNotManaged, err))
	}

	img, err := newImage(&f.CLR)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return img, nil
}

func newImage(clr *peparser.CLRData) (*Image, error) {
	if clr.CLRHeader.MetaData.VirtualAddress == 0 || clr.CLRHeader.MetaData.Size == 0 {
		return nil, ErrNotManaged
	}
	if clr.MetadataHeader.Signature != metadataSignature {
		return nil, malformed("metadata root", "missing BSJB signature")
	}
	if _, ok := clr.MetadataStreams["#~"]; !ok {
		return nil, malformed("metadata root", "no #~ stream")
	}

	img := &Image{
		strings: clr.MetadataStreams["#Strings"],
		blob:    clr.MetadataStreams["#Blob"],
	}
	var err error
	if img.typeRefs, err = tableRows[peparser.TypeRefTableRow](clr, TableTypeRef); err != nil {
		return nil, err
	}
	if img.typeDefs, err = tableRows[peparser.TypeDefTableRow](clr, TableTypeDef); err != nil {
		return nil, err
	}
	if img.methodDefs, err = tableRows[peparser.MethodDefTableRow](clr, TableMethodDef); err != nil {
		return nil, err
	}
	if img.memberRefs, err = tableRows[peparser.MemberRefTableRow](clr, TableMemberRef); err != nil {
		return nil, err
	}
	if img.customAttrs, err = tableRows[peparser.CustomAttributeTableRow](clr, TableCustomAttribute); err != nil {
		return nil, err
	}
	if img.nested, err = tableRows[peparser.NestedClassTableRow](clr, TableNestedClass); err != nil {
		return nil, err
	}
	return img, nil
}

// tableRows returns the decoded rows of table id, or nil when the image has
// no such table.
func tableRows[T any](clr *peparser.CLRData, id TableID) ([]T, error) {
	t, ok := clr.MetadataTables[int(id)]
	if !ok || t == nil {
		return nil, nil
	}
	if t.Content == nil {
		if t.CountCols > 0 {
			return nil, malformed("#~", "table %#x has %d rows but was not decoded", id, t.CountCols)
		}
		return nil, nil
	}
	rows, ok := t.Content.([]T)
	if !ok {
		return nil, malformed("#~", "table %#x decoded as %T", id, t.Content)
	}
	return rows, nil
}

// rowAt returns the 1-based row r of rows.
func rowAt[T any](rows []T, table TableID, r uint32) (T, error) {
	if r == 0 || uint64(r) > uint64(len(rows)) {
		var zero T
		return zero, malformed("token", "row %d out of range for table %#x (%d rows)", r, table, len(rows))
	}
	return rows[r-1], nil
}
