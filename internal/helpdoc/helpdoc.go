// SPDX-License-Identifier: MPL-2.0

// Package helpdoc extracts the documented command names from MAML help
// documents (the `<Name>.dll-Help.xml` files shipped next to PowerShell
// binary modules).
package helpdoc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	// CommandNamespace is the MAML command schema namespace.
	CommandNamespace = "http://schemas.microsoft.com/maml/dev/command/2004/10"

	// MaxDocumentSize bounds how much of a help document is read.
	MaxDocumentSize = 32 << 20

	// commandPrefix is how Go's decoder reports the namespace of a
	// `command:` element whose prefix was never declared.
	commandPrefix = "command"
)

// ErrParse is the sentinel wrapped by every ParseError.
var ErrParse = errors.New("help document parse failed")

// ParseError reports a help document that could not be read or decoded.
type ParseError struct {
	Path string
	Err  error
}

// Error implements the error interface for ParseError.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse help document %s: %v", e.Path, e.Err)
}

// Unwrap returns both ErrParse and the underlying cause.
func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }

// Parse reads the help document at path and returns the set of command names
// it documents.
func Parse(path string) (*DocumentedSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	return ParseReader(f, path)
}

// ParseReader reads a help document from r. The name is used in errors only.
func ParseReader(r io.Reader, name string) (*DocumentedSet, error) {
	lr := &io.LimitedReader{R: r, N: MaxDocumentSize + 1}
	// A byte order mark selects UTF-16 or UTF-8 before the decoder sees the
	// declaration; without one the bytes pass through unchanged.
	dec := xml.NewDecoder(transform.NewReader(lr, unicode.BOMOverride(encoding.Nop.NewDecoder())))
	dec.Strict = true
	dec.CharsetReader = charsetReader

	set := NewDocumentedSet()
	var (
		stack   []xml.Name
		capture bool
		sawRoot bool
		text    strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if lr.N <= 0 {
				err = fmt.Errorf("document exceeds %d bytes", MaxDocumentSize)
			}
			return nil, &ParseError{Path: name, Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name)
			sawRoot = true
			if isCommandName(stack) {
				capture = true
				text.Reset()
			}
		case xml.CharData:
			if capture {
				text.Write(t)
			}
		case xml.EndElement:
			if capture && isCommandName(stack) {
				set.Add(text.String())
				capture = false
			}
			stack = stack[:len(stack)-1]
		}
	}
	if lr.N <= 0 {
		return nil, &ParseError{Path: name, Err: fmt.Errorf("document exceeds %d bytes", MaxDocumentSize)}
	}
	if !sawRoot {
		return nil, &ParseError{Path: name, Err: errors.New("no root element")}
	}
	if len(stack) != 0 {
		return nil, &ParseError{Path: name, Err: io.ErrUnexpectedEOF}
	}
	return set, nil
}

// isCommandName reports whether the innermost element is the name of a
// command topic: command > details > name.
func isCommandName(stack []xml.Name) bool {
	n := len(stack)
	if n < 3 {
		return false
	}
	return isCommandElement(stack[n-3], "command") &&
		isCommandElement(stack[n-2], "details") &&
		isCommandElement(stack[n-1], "name")
}

func isCommandElement(name xml.Name, local string) bool {
	if name.Local != local {
		return false
	}
	switch name.Space {
	case "", CommandNamespace, commandPrefix:
		return true
	default:
		return false
	}
}

// charsetReader converts a document declared in a legacy charset to UTF-8.
// UTF-16 documents were already converted from their byte order mark.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-16", "utf-16le", "utf-16be", "unicode":
		return input, nil
	}
	return charset.NewReaderLabel(label, input)
}
