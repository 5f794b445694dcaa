// Package engine is the suppression engine: it decides, around each
// classification, whether a stored rule silences an entry and whether a
// classifier suggestion should become a new rule.
package engine

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/crimson-sun/whistle/internal/engine/classifier"
	"github.com/crimson-sun/whistle/internal/model"
	"github.com/crimson-sun/whistle/internal/rules"
)

const (
	// commentPrefixLen bounds how much of the source entry a learned
	// rule's comment quotes.
	commentPrefixLen = 80
	autoNameLayout   = "20060102-150405"
)

// ErrInvalidSuggestion is returned by Learn when the suggested pattern does
// not compile. Nothing is learned.
var ErrInvalidSuggestion = errors.New("invalid suggested pattern")

// Persister writes the whole rule list to durable storage.
type Persister interface {
	SaveRules(recs []rules.Record) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(recs []rules.Record) error

// SaveRules calls f.
func (f PersisterFunc) SaveRules(recs []rules.Record) error { return f(recs) }

// PersistError reports that a learned rule is active in memory but could
// not be written out.
type PersistError struct {
	Rule string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist learned rule '%s': %v", e.Rule, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Option configures an Engine.
type Option func(*Engine)

// WithPersister sets where learned rules are saved. Default: nowhere.
func WithPersister(p Persister) Option {
	return func(e *Engine) { e.persist = p }
}

// WithClock overrides time.Now for rule names and comments.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine applies a RuleSet before and after classification and grows it
// from classifier feedback. The RuleSet is shared by pointer so that a rule
// learned for one entry is visible to every later entry of the same run.
type Engine struct {
	rules   *rules.RuleSet
	persist Persister
	now     func() time.Time
	logger  *zap.Logger
}

// New creates an Engine over rs. A nil rs starts empty.
func New(rs *rules.RuleSet, opts ...Option) *Engine {
	if rs == nil {
		rs = rules.NewSet()
	}
	e := &Engine{
		rules:  rs,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the live RuleSet.
func (e *Engine) Rules() *rules.RuleSet {
	return e.rules
}

// Precheck reports the first rule that already silences entry. A matched
// entry should not be sent to the classifier.
func (e *Engine) Precheck(entry string) (rules.Rule, bool) {
	return e.rules.Match(entry)
}

// Override re-tests entry after classification. When a rule matches, the
// verdict becomes non-anomalous, its reason names the rule, and any
// suggestion is dropped so no learning follows.
func (e *Engine) Override(entry string, v model.Verdict) (model.Verdict, rules.Rule, bool) {
	r, ok := e.rules.Match(entry)
	if !ok {
		return v, rules.Rule{}, false
	}
	return model.Verdict{
		IsAnomaly: false,
		Reason:    IgnoredReason(r.Name),
	}, r, true
}

// IgnoredReason is the verdict reason for an entry silenced by rule name.
func IgnoredReason(name string) string {
	return fmt.Sprintf("Ignored by rule '%s'", name)
}

// Learn adds a rule from v's suggestion when no rule already carries that
// exact pattern, then persists the whole set.
//
// It returns (nil, nil) when there is nothing to learn. When the rule was
// added but saving failed it returns the rule together with a *PersistError;
// the rule stays active for the rest of the run.
func (e *Engine) Learn(entry string, v model.Verdict) (*rules.Rule, error) {
	if !v.HasSuggestion() || e.rules.HasPattern(v.SuggestedPattern) {
		return nil, nil
	}

	now := e.now()
	name := e.uniqueName(v.SuggestedName, now)
	comment := fmt.Sprintf("Learned from classifier on %s: %s", now.Format(time.RFC3339), classifier.Summarize(entry, commentPrefixLen))

	r, err := rules.New(name, v.SuggestedPattern, comment)
	if err != nil {
		e.logger.Warn("discarding suggested pattern", zap.String("pattern", v.SuggestedPattern), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuggestion, err)
	}
	if err := e.rules.Add(r); err != nil {
		// uniqueName guarantees a free name; this only fires on misuse.
		return nil, err
	}

	e.logger.Info("learned ignore rule", zap.String("name", r.Name), zap.String("pattern", r.Pattern))

	if e.persist == nil {
		return &r, nil
	}
	if err := e.persist.SaveRules(e.rules.Records()); err != nil {
		e.logger.Error("failed to persist learned rule", zap.String("name", r.Name), zap.Error(err))
		return &r, &PersistError{Rule: r.Name, Err: err}
	}
	return &r, nil
}

// uniqueName picks the suggested name, or a timestamped fallback, and adds a
// numeric suffix until it is free.
func (e *Engine) uniqueName(suggested string, now time.Time) string {
	base := suggested
	if base == "" {
		base = "auto-" + now.Format(autoNameLayout)
	}
	name := base
	for i := 2; e.rules.Has(name); i++ {
		name = base + "-" + strconv.Itoa(i)
	}
	return name
}
