// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// mamlCommandNamespace is the namespace of <command:command> elements.
const mamlCommandNamespace = "http://schemas.microsoft.com/maml/dev/command/2004/10"

// MustWriteFile writes content to path, creating parent directories.
func MustWriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// HelpDocument returns a MAML help document with one command entry per name.
func HelpDocument(names ...string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	sb.WriteString(`<helpItems schema="maml" xmlns="http://msh">` + "\n")
	for _, n := range names {
		fmt.Fprintf(&sb, `<command:command xmlns:command="%s"><command:details><command:name>%s</command:name></command:details></command:command>`+"\n",
			mamlCommandNamespace, n)
	}
	sb.WriteString("</helpItems>\n")
	return sb.String()
}

// MustWriteHelp writes HelpDocument(names...) to path.
func MustWriteHelp(t testing.TB, path string, names ...string) {
	t.Helper()
	MustWriteFile(t, path, HelpDocument(names...))
}
