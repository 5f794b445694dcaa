// Package rules holds the ordered set of suppression rules used to silence
// known-noisy log lines.
package rules

import (
	"fmt"
	"regexp"
)

// Rule is a named suppression pattern. Rules are values: a RuleSet never
// mutates a stored rule, it only adds or removes whole rules.
type Rule struct {
	Name    string
	Pattern string
	Comment string

	re *regexp.Regexp
}

// New compiles pattern and returns a Rule. The pattern is matched
// unanchored against raw entry text.
func New(name, pattern, comment string) (Rule, error) {
	if name == "" {
		return Rule{}, ErrEmptyName
	}
	if pattern == "" {
		return Rule{}, &InvalidPatternError{Name: name, Pattern: pattern, Err: errEmptyPattern}
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, &InvalidPatternError{Name: name, Pattern: pattern, Err: err}
	}
	return Rule{Name: name, Pattern: pattern, Comment: comment, re: re}, nil
}

// Matches reports whether the rule's pattern occurs anywhere in entry.
func (r Rule) Matches(entry string) bool {
	if r.re == nil {
		return false
	}
	return r.re.MatchString(entry)
}

// String renders the rule the way `whistle ignore list` shows it.
func (r Rule) String() string {
	if r.Comment != "" {
		return fmt.Sprintf("%s: '%s' (%s)", r.Name, r.Pattern, r.Comment)
	}
	return fmt.Sprintf("%s: '%s'", r.Name, r.Pattern)
}

// RuleSet is an ordered collection of rules with unique names.
// Not safe for concurrent mutation; a pipeline run owns its RuleSet.
type RuleSet struct {
	rules []Rule
}

// NewSet returns an empty RuleSet.
func NewSet() *RuleSet {
	return &RuleSet{}
}

// Match returns the first rule, in stored order, whose pattern matches entry.
func (s *RuleSet) Match(entry string) (Rule, bool) {
	for _, r := range s.rules {
		if r.Matches(entry) {
			return r, true
		}
	}
	return Rule{}, false
}

// Add appends r. It fails with a *DuplicateNameError when a rule with the
// same name exists. A duplicate pattern under a different name is accepted;
// callers that care use HasPattern first.
func (s *RuleSet) Add(r Rule) error {
	if r.re == nil {
		compiled, err := New(r.Name, r.Pattern, r.Comment)
		if err != nil {
			return err
		}
		r = compiled
	}
	if _, ok := s.index(r.Name); ok {
		return &DuplicateNameError{Name: r.Name}
	}
	s.rules = append(s.rules, r)
	return nil
}

// Remove deletes the rule called name. Returns false when no such rule exists.
func (s *RuleSet) Remove(name string) bool {
	i, ok := s.index(name)
	if !ok {
		return false
	}
	s.rules = append(s.rules[:i:i], s.rules[i+1:]...)
	return true
}

// Clear empties the set.
func (s *RuleSet) Clear() {
	s.rules = nil
}

// Has reports whether a rule called name exists.
func (s *RuleSet) Has(name string) bool {
	_, ok := s.index(name)
	return ok
}

// HasPattern reports whether any rule carries exactly this pattern string.
func (s *RuleSet) HasPattern(pattern string) bool {
	for _, r := range s.rules {
		if r.Pattern == pattern {
			return true
		}
	}
	return false
}

// Get returns the rule called name.
func (s *RuleSet) Get(name string) (Rule, bool) {
	i, ok := s.index(name)
	if !ok {
		return Rule{}, false
	}
	return s.rules[i], true
}

// Rules returns a copy of the rules in stored order.
func (s *RuleSet) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Len returns the number of rules.
func (s *RuleSet) Len() int {
	return len(s.rules)
}

func (s *RuleSet) index(name string) (int, bool) {
	for i, r := range s.rules {
		if r.Name == name {
			return i, true
		}
	}
	return -1, false
}
