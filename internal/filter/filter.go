package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidPattern = errors.New("invalid name pattern")

// NameFilter excludes checks whose display name matches any pattern.
// A nil *NameFilter excludes nothing.
type NameFilter struct {
	patterns []*regexp.Regexp
}

// New compiles patterns with regexp search semantics. Empty patterns are
// skipped; New with no usable patterns returns nil.
func New(patterns ...string) (*NameFilter, error) {
	var compiled []*regexp.Regexp
	for _, p := range patterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidPattern, p, err)
		}
		compiled = append(compiled, re)
	}
	if len(compiled) == 0 {
		return nil, nil
	}
	return &NameFilter{patterns: compiled}, nil
}

func (f *NameFilter) Excludes(name string) bool {
	if f == nil {
		return false
	}
	for _, re := range f.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func (f *NameFilter) String() string {
	if f == nil {
		return ""
	}
	parts := make([]string, len(f.patterns))
	for i, re := range f.patterns {
		parts[i] = re.String()
	}
	return strings.Join(parts, " | ")
}
