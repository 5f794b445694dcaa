package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/crimson-sun/whistle/internal/model"
)

var (
	// ErrMissingField is wrapped when a required key is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrNoJSON is returned when the response contains no JSON object.
	ErrNoJSON = errors.New("no JSON object in response")
)

var (
	// jsonBlockPattern matches JSON inside markdown code blocks: ```json { ... } ```
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// jsonObjectPattern matches any JSON object (greedy fallback).
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// response is the oracle's wire shape. Pointers make absence detectable.
type response struct {
	IsAnomaly        *bool   `json:"is_anomaly"`
	Reason           *string `json:"reason"`
	SuggestedPattern *string `json:"suggested_pattern"`
	SuggestedName    *string `json:"suggested_name"`
}

// ParseVerdict validates a raw oracle response. is_anomaly and a non-empty
// reason are required; a missing key is an error, never a default.
func ParseVerdict(raw string) (model.Verdict, error) {
	obj := extractJSON(raw)
	if obj == "" {
		return model.Verdict{}, ErrNoJSON
	}

	var r response
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return model.Verdict{}, fmt.Errorf("decode response: %w", err)
	}
	if r.IsAnomaly == nil {
		return model.Verdict{}, fmt.Errorf("%w: is_anomaly", ErrMissingField)
	}
	if r.Reason == nil || strings.TrimSpace(*r.Reason) == "" {
		return model.Verdict{}, fmt.Errorf("%w: reason", ErrMissingField)
	}

	v := model.Verdict{
		IsAnomaly: *r.IsAnomaly,
		Reason:    strings.TrimSpace(*r.Reason),
	}
	if r.SuggestedPattern != nil {
		v.SuggestedPattern = *r.SuggestedPattern
	}
	if r.SuggestedName != nil {
		v.SuggestedName = strings.TrimSpace(*r.SuggestedName)
	}
	return v, nil
}

func extractJSON(content string) string {
	if m := jsonBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		return m[1]
	}
	return jsonObjectPattern.FindString(content)
}
