// SPDX-License-Identifier: MPL-2.0

// Package reconcile compares the cmdlets an assembly declares with the names
// its help document covers.
package reconcile

import (
	"fmt"

	"github.com/helpaudit/helpaudit/internal/loader"
)

// MissingHelpSeverity is the severity of every missing-help record.
const MissingHelpSeverity = 1

type (
	// Documented reports whether a command name has a help entry. Membership
	// is expected to ignore case.
	Documented interface {
		Contains(name string) bool
	}

	// IssueRecord is one undocumented cmdlet. HelpFile and Assembly are
	// filled in by the caller that knows which pair was analyzed.
	IssueRecord struct {
		Target      string `json:"target"`
		Severity    int    `json:"severity"`
		Description string `json:"description"`
		Remediation string `json:"remediation"`
		HelpFile    string `json:"helpFile"`
		Assembly    string `json:"assembly"`
	}
)

// Reconcile returns one record per command missing from documented, in the
// order of commands.
func Reconcile(commands []loader.CommandMetadata, documented Documented) []IssueRecord {
	var records []IssueRecord
	for _, c := range commands {
		if documented != nil && documented.Contains(c.CommandName) {
			continue
		}
		records = append(records, MissingHelp(c))
	}
	return records
}

// MissingHelp builds the record reported for an undocumented command.
func MissingHelp(c loader.CommandMetadata) IssueRecord {
	return IssueRecord{
		Target:      c.TypeName,
		Severity:    MissingHelpSeverity,
		Description: fmt.Sprintf("Help missing for cmdlet %s implemented by class %s", c.CommandName, c.TypeName),
		Remediation: fmt.Sprintf("Add Help record for cmdlet %s to help file.", c.CommandName),
	}
}

// WithContext returns a copy of records stamped with the analyzed pair.
func WithContext(records []IssueRecord, helpFile, assembly string) []IssueRecord {
	out := make([]IssueRecord, len(records))
	for i, r := range records {
		r.HelpFile = helpFile
		r.Assembly = assembly
		out[i] = r
	}
	return out
}
