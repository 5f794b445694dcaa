package model

// Verdict is the normalized classification result for one log entry.
// Reason is never empty. SuggestedPattern and SuggestedName are empty when
// the classifier made no suggestion.
type Verdict struct {
	IsAnomaly        bool   `json:"is_anomaly"`
	Reason           string `json:"reason"`
	SuggestedPattern string `json:"suggested_pattern,omitempty"`
	SuggestedName    string `json:"suggested_name,omitempty"`
}

// HasSuggestion reports whether the classifier proposed a suppression pattern.
func (v Verdict) HasSuggestion() bool {
	return v.SuggestedPattern != ""
}
