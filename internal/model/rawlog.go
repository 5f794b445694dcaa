package model

import "time"

// RawLog is the intermediate type produced by connectors and consumed by the pipeline.
type RawLog struct {
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source,omitempty"` // connector name (e.g. "journalctl", "file")
	Raw       string         `json:"raw"`              // original log line, treated as opaque text
	Metadata  map[string]any `json:"metadata,omitempty"`
}
