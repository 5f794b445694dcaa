package whistle

import (
	"github.com/crimson-sun/whistle/internal/model"
	"github.com/crimson-sun/whistle/internal/pipeline"
	"github.com/crimson-sun/whistle/internal/rules"
)

// Stage values reported in Result.Stage.
const (
	StageSuppressed = string(model.StageSuppressed) // a rule matched before classification
	StageOverridden = string(model.StageOverridden) // a rule vetoed the classifier verdict
	StageClassified = string(model.StageClassified) // the classifier verdict stands
)

// Rule is a named ignore pattern.
type Rule struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
	Comment string `json:"comment,omitempty"`
}

// Verdict is what a custom classifier returns for one line.
type Verdict struct {
	Anomaly          bool
	Reason           string
	SuggestedPattern string // regex for lines like this one that are safe to ignore
	SuggestedName    string
}

// Result is the outcome for one line. A blank line yields the zero Result.
type Result struct {
	Text      string `json:"text"`
	Anomaly   bool   `json:"anomaly"`
	Reason    string `json:"reason"`
	Stage     string `json:"stage"`
	Rule      string `json:"rule,omitempty"`    // rule that silenced the line
	Learned   *Rule  `json:"learned,omitempty"` // rule learned from this line
	Escalated bool   `json:"escalated,omitempty"`
}

// Report is the outcome of one Analyze call.
type Report struct {
	Results         []Result `json:"results"`
	Seen            int      `json:"seen"`
	Suppressed      int      `json:"suppressed"`
	Overridden      int      `json:"overridden"`
	Classified      int      `json:"classified"`
	Anomalies       int      `json:"anomalies"`
	Learned         int      `json:"learned"`
	NotifyFailures  int      `json:"notify_failures,omitempty"`
	PersistFailures int      `json:"persist_failures,omitempty"`
}

// Anomalous returns the results flagged as anomalies.
func (r Report) Anomalous() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Anomaly {
			out = append(out, res)
		}
	}
	return out
}

func toResult(oc model.Outcome) Result {
	res := Result{
		Text:      oc.Entry.Raw,
		Anomaly:   oc.Verdict.IsAnomaly,
		Reason:    oc.Verdict.Reason,
		Stage:     string(oc.Stage),
		Rule:      oc.Rule,
		Escalated: oc.Escalated,
	}
	if oc.Learned != nil {
		res.Learned = &Rule{Name: oc.Learned.Name, Pattern: oc.Learned.Pattern, Comment: oc.Learned.Comment}
	}
	return res
}

func toReport(s pipeline.Stats, results []Result) Report {
	return Report{
		Results:         results,
		Seen:            s.Seen,
		Suppressed:      s.Suppressed,
		Overridden:      s.Overridden,
		Classified:      s.Classified,
		Anomalies:       s.Anomalies,
		Learned:         s.Learned,
		NotifyFailures:  s.NotifyFailures,
		PersistFailures: s.PersistFailures,
	}
}

func toRecords(rs []Rule) []rules.Record {
	out := make([]rules.Record, 0, len(rs))
	for _, r := range rs {
		out = append(out, rules.Record{Name: r.Name, Pattern: r.Pattern, Comment: r.Comment})
	}
	return out
}

func fromRecords(recs []rules.Record) []Rule {
	out := make([]Rule, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Rule{Name: rec.Name, Pattern: rec.Pattern, Comment: rec.Comment})
	}
	return out
}
