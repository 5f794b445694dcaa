package model

// Stage records how the pipeline reached the final verdict for an entry.
type Stage string

const (
	// StageSuppressed means a rule matched before classification; the
	// classifier never saw the entry.
	StageSuppressed Stage = "suppressed"
	// StageOverridden means the classifier ran but a rule vetoed its verdict.
	StageOverridden Stage = "overridden"
	// StageClassified means the classifier verdict stands.
	StageClassified Stage = "classified"
)

// LearnedRule describes a suppression rule added from classifier feedback.
type LearnedRule struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
	Comment string `json:"comment,omitempty"`
}

// Outcome is whistle's per-entry output type.
type Outcome struct {
	Entry     RawLog       `json:"entry"`
	Verdict   Verdict      `json:"verdict"`
	Stage     Stage        `json:"stage"`
	Rule      string       `json:"rule,omitempty"`    // matching rule for suppressed/overridden entries
	Learned   *LearnedRule `json:"learned,omitempty"` // rule learned from this entry
	Escalated bool         `json:"escalated,omitempty"`
}

// Suppressed reports whether a rule decided the outcome.
func (o Outcome) Suppressed() bool {
	return o.Stage == StageSuppressed || o.Stage == StageOverridden
}
