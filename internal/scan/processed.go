// SPDX-License-Identifier: MPL-2.0

package scan

import "strings"

// ProcessedSet records the help file names handled during one run. Names
// are compared case-insensitively; directories are not part of the key, so
// the same file name found under two roots is analyzed once.
type ProcessedSet struct {
	names map[string]struct{}
}

// NewProcessedSet returns an empty set.
func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{names: make(map[string]struct{})}
}

// Contains reports whether name was already processed.
func (p *ProcessedSet) Contains(name string) bool {
	_, ok := p.names[strings.ToLower(name)]
	return ok
}

// Add marks name as processed and reports whether it was new.
func (p *ProcessedSet) Add(name string) bool {
	key := strings.ToLower(name)
	if _, ok := p.names[key]; ok {
		return false
	}
	p.names[key] = struct{}{}
	return true
}

// Len returns the number of processed names.
func (p *ProcessedSet) Len() int {
	return len(p.names)
}
