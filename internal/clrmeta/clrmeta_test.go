// SPDX-License-Identifier: MPL-2.0

package clrmeta_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/helpaudit/helpaudit/internal/clrmeta"
	"github.com/helpaudit/helpaudit/internal/clrmeta/clrmetatest"
)

func TestOpen_ManagedImage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Contoso.Tools.dll")
	clrmetatest.Write(t, path, clrmetatest.Assembly{
		Module: "Contoso.Tools.dll",
		Cmdlets: []clrmetatest.Cmdlet{
			{Namespace: "Contoso.Tools", Verb: "Get", Noun: "Widget"},
		},
		PlainTypes: []string{"Contoso.Tools.Helper"},
	})

	img, err := clrmeta.Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	full, err := img.FullName(2)
	if err != nil {
		t.Fatalf("FullName(2) error: %v", err)
	}
	if full != "Contoso.Tools.GetWidgetCommand" {
		t.Errorf("FullName(2) = %q", full)
	}
	attrs, errs := img.CustomAttributes()
	if len(errs) != 0 {
		t.Fatalf("CustomAttributes() errors: %v", errs)
	}
	if len(attrs) != 2 {
		t.Errorf("CustomAttributes() returned %d, want 2", len(attrs))
	}
}

func TestOpen_Missing(t *testing.T) {
	t.Parallel()

	_, err := clrmeta.Open(filepath.Join(t.TempDir(), "absent.dll"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Open() error = %v, want os.ErrNotExist", err)
	}
}

func TestOpen_FileClosedAfterRead(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "A.dll")
	clrmetatest.Write(t, path, clrmetatest.Assembly{})

	if _, err := clrmeta.Open(path); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	// The image keeps no handle, so the file can be replaced immediately.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove after Open: %v", err)
	}
}

func TestRead_NotManaged(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "text file", data: []byte("this is not a portable executable, just some text padding it out")},
		{name: "empty", data: nil},
		{name: "native PE", data: clrmetatest.Build(clrmetatest.Assembly{Native: true})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := clrmeta.Parse(tt.data, tt.name)
			if !errors.Is(err, clrmeta.ErrNotManaged) {
				t.Fatalf("Parse() error = %v, want ErrNotManaged", err)
			}
		})
	}
}

func TestRead_CorruptMetadata(t *testing.T) {
	t.Parallel()

	data := clrmetatest.Build(clrmetatest.Assembly{})
	// Metadata starts right after the 72-byte CLI header at file offset 0x200.
	sig := bytes.Index(data, []byte("BSJB"))
	if sig != 0x200+72 {
		t.Fatalf("BSJB found at %#x", sig)
	}
	copy(data[sig:], "XXXX")

	_, err := clrmeta.Parse(data, "corrupt.dll")
	if !errors.Is(err, clrmeta.ErrMalformed) {
		t.Fatalf("Parse() error = %v, want ErrMalformed", err)
	}
	var fe *clrmeta.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FormatError, got %T", err)
	}
	if fe.Structure != "metadata root" {
		t.Errorf("Structure = %q, want metadata root", fe.Structure)
	}
}

func TestFullNameAndVisibility(t *testing.T) {
	t.Parallel()

	img := readAssembly(t, clrmetatest.Assembly{
		Cmdlets: []clrmetatest.Cmdlet{
			{Namespace: "Contoso", Verb: "Get", Noun: "Widget"},
			{Namespace: "Contoso", Verb: "Set", Noun: "Widget", NonPublic: true},
		},
		PlainTypes: []string{"Contoso.Util.Helper", "GlobalType"},
	})

	tests := []struct {
		row      uint32
		full     string
		exported bool
	}{
		{1, "<Module>", false},
		{2, "Contoso.GetWidgetCommand", true},
		{3, "Contoso.SetWidgetCommand", false},
		{4, "Contoso.Util.Helper", true},
		{5, "GlobalType", true},
	}
	for _, tt := range tests {
		full, err := img.FullName(tt.row)
		if err != nil {
			t.Fatalf("FullName(%d) error: %v", tt.row, err)
		}
		if full != tt.full {
			t.Errorf("FullName(%d) = %q, want %q", tt.row, full, tt.full)
		}
		exported, err := img.Exported(tt.row)
		if err != nil {
			t.Fatalf("Exported(%d) error: %v", tt.row, err)
		}
		if exported != tt.exported {
			t.Errorf("Exported(%d) = %v, want %v", tt.row, exported, tt.exported)
		}
	}
}

func TestFullName_Nested(t *testing.T) {
	t.Parallel()

	c := clrmetatest.Cmdlet{Namespace: "Contoso", Outer: "Commands", Verb: "Remove", Noun: "Widget"}
	hidden := clrmetatest.Cmdlet{Namespace: "Contoso", Outer: "Commands", Verb: "Hide", Noun: "Widget", NonPublic: true}
	img := readAssembly(t, clrmetatest.Assembly{Cmdlets: []clrmetatest.Cmdlet{c, hidden}})

	// Rows: <Module>, Commands, RemoveWidgetCommand, HideWidgetCommand.
	full, err := img.FullName(3)
	if err != nil {
		t.Fatalf("FullName() error: %v", err)
	}
	if full != c.TypeName() || full != "Contoso.Commands+RemoveWidgetCommand" {
		t.Errorf("FullName(3) = %q, want %q", full, c.TypeName())
	}

	exported, err := img.Exported(3)
	if err != nil || !exported {
		t.Errorf("Exported(3) = %v, %v; want true", exported, err)
	}
	exported, err = img.Exported(4)
	if err != nil || exported {
		t.Errorf("Exported(4) = %v, %v; want false", exported, err)
	}

	outer, err := img.FullName(2)
	if err != nil || outer != "Contoso.Commands" {
		t.Errorf("FullName(2) = %q, %v; want Contoso.Commands", outer, err)
	}
}

func TestAttributes(t *testing.T) {
	t.Parallel()

	img := readAssembly(t, clrmetatest.Assembly{
		Cmdlets:    []clrmetatest.Cmdlet{{Namespace: "Contoso", Verb: "Get", Noun: "Widget"}},
		PlainTypes: []string{"Contoso.Helper"},
	})

	attrs, errs := img.CustomAttributes()
	if len(errs) != 0 {
		t.Fatalf("CustomAttributes() errors: %v", errs)
	}
	if len(attrs) != 2 {
		t.Fatalf("CustomAttributes() returned %d, want 2", len(attrs))
	}

	cmdlet := attrs[0]
	if cmdlet.Parent != (clrmeta.Token{Table: clrmeta.TableTypeDef, Row: 2}) {
		t.Errorf("Parent = %+v", cmdlet.Parent)
	}
	ns, name, err := img.AttributeType(cmdlet)
	if err != nil {
		t.Fatalf("AttributeType() error: %v", err)
	}
	if ns != "System.Management.Automation" || name != "CmdletAttribute" {
		t.Errorf("AttributeType() = %s.%s", ns, name)
	}
	params, err := img.ConstructorParams(cmdlet)
	if err != nil {
		t.Fatalf("ConstructorParams() error: %v", err)
	}
	if !bytes.Equal(params, []byte{clrmeta.ElementString, clrmeta.ElementString}) {
		t.Errorf("ConstructorParams() = %x", params)
	}
	args, err := clrmeta.DecodeStringArgs(cmdlet.Value, 2)
	if err != nil {
		t.Fatalf("DecodeStringArgs() error: %v", err)
	}
	if args[0] != "Get" || args[1] != "Widget" {
		t.Errorf("args = %q", args)
	}

	obsolete := attrs[1]
	ns, name, err = img.AttributeType(obsolete)
	if err != nil {
		t.Fatalf("AttributeType(obsolete) error: %v", err)
	}
	if ns != "System" || name != "ObsoleteAttribute" {
		t.Errorf("AttributeType(obsolete) = %s.%s", ns, name)
	}
	params, err = img.ConstructorParams(obsolete)
	if err != nil || len(params) != 0 {
		t.Errorf("ConstructorParams(obsolete) = %x, %v", params, err)
	}
	if obsolete.Parent != (clrmeta.Token{Table: clrmeta.TableTypeDef, Row: 3}) {
		t.Errorf("obsolete.Parent = %+v", obsolete.Parent)
	}
}

func TestDecodeStringArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   []byte
		n       int
		want    []string
		wantErr bool
	}{
		{name: "two strings", value: []byte{1, 0, 3, 'G', 'e', 't', 1, 'X', 0, 0}, n: 2, want: []string{"Get", "X"}},
		{name: "null string", value: []byte{1, 0, 0xFF, 2, 'i', 't'}, n: 2, want: []string{"", "it"}},
		{name: "empty string", value: []byte{1, 0, 0, 0}, n: 2, want: []string{"", ""}},
		{name: "missing prolog", value: []byte{2, 0, 0}, n: 1, wantErr: true},
		{name: "truncated", value: []byte{1, 0, 5, 'G', 'e'}, n: 1, wantErr: true},
		{name: "missing argument", value: []byte{1, 0, 1, 'A'}, n: 2, wantErr: true},
		{name: "invalid utf8", value: []byte{1, 0, 2, 0xC3, 0x28}, n: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := clrmeta.DecodeStringArgs(tt.value, tt.n)
			if tt.wantErr {
				if !errors.Is(err, clrmeta.ErrMalformed) {
					t.Fatalf("DecodeStringArgs() error = %v, want ErrMalformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeStringArgs() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("DecodeStringArgs() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("arg %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRowRangeChecked(t *testing.T) {
	t.Parallel()

	img := readAssembly(t, clrmetatest.Assembly{})

	if _, err := img.FullName(99); !errors.Is(err, clrmeta.ErrMalformed) {
		t.Errorf("FullName(99) error = %v, want ErrMalformed", err)
	}
	if _, err := img.Exported(99); !errors.Is(err, clrmeta.ErrMalformed) {
		t.Errorf("Exported(99) error = %v, want ErrMalformed", err)
	}
	bogus := clrmeta.CustomAttribute{Constructor: clrmeta.Token{Table: clrmeta.TableMemberRef, Row: 99}}
	if _, _, err := img.AttributeType(bogus); !errors.Is(err, clrmeta.ErrMalformed) {
		t.Errorf("AttributeType(out of range) error = %v, want ErrMalformed", err)
	}
	bogus.Constructor.Table = clrmeta.TableField
	if _, err := img.ConstructorParams(bogus); !errors.Is(err, clrmeta.ErrMalformed) {
		t.Errorf("ConstructorParams(Field) error = %v, want ErrMalformed", err)
	}
}

func readAssembly(t *testing.T, a clrmetatest.Assembly) *clrmeta.Image {
	t.Helper()

	img, err := clrmeta.Parse(clrmetatest.Build(a), "test.dll")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return img
}
