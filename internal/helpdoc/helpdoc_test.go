// SPDX-License-Identifier: MPL-2.0

package helpdoc

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const mamlHeader = `<?xml version="1.0" encoding="utf-8"?>
<helpItems schema="maml" xmlns="http://msh">
`

func mamlCommand(name string) string {
	return `  <command:command xmlns:maml="http://schemas.microsoft.com/maml/2004/10" xmlns:command="http://schemas.microsoft.com/maml/dev/command/2004/10" xmlns:dev="http://schemas.microsoft.com/maml/dev/2004/10">
    <command:details>
      <command:name>` + name + `</command:name>
      <maml:description><maml:para>Does something.</maml:para></maml:description>
      <command:verb>Get</command:verb>
    </command:details>
    <command:syntax>
      <command:syntaxItem>
        <maml:name>` + name + `-Syntax</maml:name>
      </command:syntaxItem>
    </command:syntax>
  </command:command>
`
}

func mamlDocument(names ...string) string {
	var sb strings.Builder
	sb.WriteString(mamlHeader)
	for _, n := range names {
		sb.WriteString(mamlCommand(n))
	}
	sb.WriteString("</helpItems>\n")
	return sb.String()
}

func TestParse(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Contoso.dll-Help.xml")
	if err := os.WriteFile(path, []byte(mamlDocument("Get-Foo", "Set-Foo")), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	set, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := set.Names(); !slices.Equal(got, []string{"Get-Foo", "Set-Foo"}) {
		t.Errorf("Names() = %q", got)
	}
	if set.Contains("Get-Foo-Syntax") {
		t.Error("syntax item names must not be treated as documented commands")
	}
}

func TestParseReader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "empty help items",
			doc:  mamlDocument(),
			want: nil,
		},
		{
			name: "duplicates collapse",
			doc:  mamlDocument("Get-Foo", "get-foo", "Get-Foo"),
			want: []string{"Get-Foo"},
		},
		{
			name: "whitespace trimmed and empty ignored",
			doc:  mamlDocument("  Get-Foo\n", "   "),
			want: []string{"Get-Foo"},
		},
		{
			name: "undeclared prefix",
			doc: `<helpItems><command:command><command:details>
<command:name>Get-Bar</command:name></command:details></command:command></helpItems>`,
			want: []string{"Get-Bar"},
		},
		{
			name: "no prefixes",
			doc:  `<helpItems><command><details><name>Get-Baz</name></details></command></helpItems>`,
			want: []string{"Get-Baz"},
		},
		{
			name: "foreign namespace ignored",
			doc: `<helpItems xmlns:x="urn:other"><x:command><x:details><x:name>Get-Nope</x:name></x:details></x:command>
<command><details><name>Get-Yes</name></details></command></helpItems>`,
			want: []string{"Get-Yes"},
		},
		{
			name: "name outside details ignored",
			doc:  `<helpItems><command><name>Get-Nope</name><details><para><name>Get-Deep</name></para></details></command></helpItems>`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			set, err := ParseReader(strings.NewReader(tt.doc), tt.name)
			if err != nil {
				t.Fatalf("ParseReader() error: %v", err)
			}
			if got := set.Names(); !slices.Equal(got, tt.want) {
				t.Errorf("Names() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseReader_Encodings(t *testing.T) {
	t.Parallel()

	declared := func(enc string) string {
		return strings.Replace(mamlDocument("Get-Café", "Set-Foo"), `encoding="utf-8"`, `encoding="`+enc+`"`, 1)
	}
	utf16 := func(order unicode.Endianness, doc string) []byte {
		out, err := unicode.UTF16(order, unicode.UseBOM).NewEncoder().String(doc)
		if err != nil {
			t.Fatalf("encode UTF-16: %v", err)
		}
		return []byte(out)
	}
	latin1, err := charmap.Windows1252.NewEncoder().String(declared("windows-1252"))
	if err != nil {
		t.Fatalf("encode windows-1252: %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "utf-8", data: []byte(declared("utf-8"))},
		{name: "utf-8 with BOM", data: append([]byte("\xEF\xBB\xBF"), declared("utf-8")...)},
		{name: "utf-16 little endian", data: utf16(unicode.LittleEndian, declared("utf-16"))},
		{name: "utf-16 big endian", data: utf16(unicode.BigEndian, declared("utf-16"))},
		{name: "windows-1252", data: []byte(latin1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			set, err := ParseReader(strings.NewReader(string(tt.data)), "encoded.xml")
			if err != nil {
				t.Fatalf("ParseReader() error: %v", err)
			}
			if got := set.Names(); !slices.Equal(got, []string{"Get-Café", "Set-Foo"}) {
				t.Errorf("Names() = %q", got)
			}
		})
	}
}

func TestParseReader_UnknownCharset(t *testing.T) {
	t.Parallel()

	doc := strings.Replace(mamlDocument("Get-Foo"), `encoding="utf-8"`, `encoding="x-no-such-charset"`, 1)
	_, err := ParseReader(strings.NewReader(doc), "odd.xml")
	if !errors.Is(err, ErrParse) {
		t.Fatalf("ParseReader() error = %v, want ErrParse", err)
	}
}

func TestParseReader_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: ""},
		{name: "truncated", doc: mamlHeader + `<command:command>`},
		{name: "mismatched tags", doc: `<helpItems><command></helpItems>`},
		{name: "not xml", doc: "Get-Foo, Set-Foo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseReader(strings.NewReader(tt.doc), "bad.xml")
			if !errors.Is(err, ErrParse) {
				t.Fatalf("ParseReader() error = %v, want ErrParse", err)
			}
			var pe *ParseError
			if !errors.As(err, &pe) || pe.Path != "bad.xml" {
				t.Errorf("expected *ParseError for bad.xml, got %#v", err)
			}
		})
	}
}

func TestParse_Unreadable(t *testing.T) {
	t.Parallel()

	_, err := Parse(filepath.Join(t.TempDir(), "missing-Help.xml"))
	if !errors.Is(err, ErrParse) {
		t.Fatalf("Parse() error = %v, want ErrParse", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Parse() error = %v, want os.ErrNotExist in chain", err)
	}
}

func TestParseReader_TooLarge(t *testing.T) {
	t.Parallel()

	doc := "<helpItems>" + strings.Repeat(" ", MaxDocumentSize) + "</helpItems>"
	_, err := ParseReader(strings.NewReader(doc), "huge.xml")
	if !errors.Is(err, ErrParse) {
		t.Fatalf("ParseReader() error = %v, want ErrParse", err)
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("error %q should mention the size limit", err)
	}
}

func TestDocumentedSet(t *testing.T) {
	t.Parallel()

	set := NewDocumentedSet("Get-Foo", "SET-FOO")
	if !set.Add("New-Foo") {
		t.Error("Add(New-Foo) = false, want true")
	}
	if set.Add("new-foo") {
		t.Error("Add(new-foo) = true for existing name")
	}
	if set.Add("") {
		t.Error("Add(\"\") = true")
	}

	for _, name := range []string{"get-foo", "Set-Foo", "NEW-FOO", " Get-Foo "} {
		if !set.Contains(name) {
			t.Errorf("Contains(%q) = false", name)
		}
	}
	if set.Contains("Remove-Foo") {
		t.Error("Contains(Remove-Foo) = true")
	}
	if set.Len() != 3 {
		t.Errorf("Len() = %d, want 3", set.Len())
	}

	var nilSet *DocumentedSet
	if nilSet.Contains("Get-Foo") || nilSet.Len() != 0 || nilSet.Names() != nil {
		t.Error("nil set should be empty")
	}
}
