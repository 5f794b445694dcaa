package whistle

import "time"

// Log is a log line with optional context. Use with CheckLog and
// AnalyzeLogs when you have timestamp and source information.
type Log struct {
	Text      string         // The line to classify
	Timestamp time.Time      // When the line was produced (zero = time.Now())
	Source    string         // Origin name (optional)
	Metadata  map[string]any // Additional context, passed through to outputs
}
