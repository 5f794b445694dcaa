package rules

import "fmt"

// Record is the persisted shape of a rule. Regex is the key used by older
// config files; Pattern takes precedence when both are set.
type Record struct {
	Name    string `yaml:"name" json:"name"`
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Regex   string `yaml:"regex,omitempty" json:"regex,omitempty"`
	Comment string `yaml:"comment,omitempty" json:"comment,omitempty"`
}

// Expr returns the stored pattern, resolving the legacy key.
func (r Record) Expr() string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return r.Regex
}

// Records returns the persisted form of the set, in stored order.
func (s *RuleSet) Records() []Record {
	out := make([]Record, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, Record{Name: r.Name, Pattern: r.Pattern, Comment: r.Comment})
	}
	return out
}

// FromRecords builds a RuleSet from persisted records. Any record with an
// empty name, a pattern that does not compile, or a repeated name fails the
// whole load: a silently dropped rule would turn into alert noise.
func FromRecords(recs []Record) (*RuleSet, error) {
	s := NewSet()
	for i, rec := range recs {
		r, err := New(rec.Name, rec.Expr(), rec.Comment)
		if err != nil {
			return nil, fmt.Errorf("ignore rule #%d: %w", i+1, err)
		}
		if err := s.Add(r); err != nil {
			return nil, fmt.Errorf("ignore rule #%d: %w", i+1, err)
		}
	}
	return s, nil
}
