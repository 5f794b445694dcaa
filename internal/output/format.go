package output

import "github.com/crimson-sun/whistle/internal/model"

// FormatOutcome returns a copy of the outcome with fields stripped according to verbosity.
// At Minimal: the entry text and metadata are dropped.
// At Standard: metadata is dropped.
// At Full: all fields preserved.
func FormatOutcome(o model.Outcome, verbosity Verbosity) model.Outcome {
	switch verbosity {
	case Minimal:
		o.Entry.Raw = ""
		o.Entry.Metadata = nil
	case Standard:
		o.Entry.Metadata = nil
	}
	return o
}
