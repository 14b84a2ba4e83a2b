// SPDX-License-Identifier: MPL-2.0

package helpdoc

import "strings"

// DocumentedSet is a set of command names with case-insensitive membership.
// It remembers the first spelling seen for each name, in document order.
type DocumentedSet struct {
	names []string
	index map[string]struct{}
}

// NewDocumentedSet returns a set holding names.
func NewDocumentedSet(names ...string) *DocumentedSet {
	s := &DocumentedSet{index: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name after trimming surrounding whitespace. Empty names and
// names already present under any casing are ignored. Add reports whether the
// set changed.
func (s *DocumentedSet) Add(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	key := foldKey(name)
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = struct{}{}
	s.names = append(s.names, name)
	return true
}

// Contains reports whether name is documented, ignoring case.
func (s *DocumentedSet) Contains(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[foldKey(strings.TrimSpace(name))]
	return ok
}

// Len returns the number of distinct names.
func (s *DocumentedSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Names returns the distinct names in the order they were first added.
func (s *DocumentedSet) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.names...)
}

func foldKey(name string) string {
	return strings.ToUpper(name)
}
