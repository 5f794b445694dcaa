package output

import (
	"context"
	"fmt"

	"github.com/crimson-sun/whistle/internal/model"
)

// Output defines the interface for outcome destinations.
type Output interface {
	Write(ctx context.Context, o model.Outcome) error
	Close() error
}

// Verbosity controls how much of each outcome is written.
type Verbosity int

const (
	// Minimal keeps the verdict and stage, dropping the log text.
	Minimal Verbosity = iota
	// Standard keeps the log text without connector metadata.
	Standard
	// Full keeps everything.
	Full
)

func (v Verbosity) String() string {
	switch v {
	case Minimal:
		return "minimal"
	case Standard:
		return "standard"
	case Full:
		return "full"
	}
	return fmt.Sprintf("Verbosity(%d)", int(v))
}

// ParseVerbosity maps a config value to a Verbosity. Empty means Standard.
func ParseVerbosity(s string) (Verbosity, error) {
	switch s {
	case "minimal":
		return Minimal, nil
	case "", "standard":
		return Standard, nil
	case "full":
		return Full, nil
	}
	return Standard, fmt.Errorf("unknown verbosity %q", s)
}
