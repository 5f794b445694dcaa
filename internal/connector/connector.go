package connector

import (
	"context"
	"errors"

	"github.com/crimson-sun/whistle/internal/model"
)

// ErrSourceUnavailable is returned when a log source cannot be opened at
// all (missing binary, missing file, journal not accessible). It is fatal:
// the run aborts before any state is persisted.
var ErrSourceUnavailable = errors.New("log source unavailable")

// Connector defines the interface all log sources must implement.
type Connector interface {
	// Stream starts following the source and sends lines as they arrive.
	// The channel is closed when the source ends, fails, or ctx is done;
	// any subprocess is torn down with ctx.
	Stream(ctx context.Context, cfg ConnectorConfig) (<-chan model.RawLog, error)

	// Query fetches a finite, ordered batch of already-written lines.
	Query(ctx context.Context, cfg ConnectorConfig, params QueryParams) ([]model.RawLog, error)
}

// ConnectorConfig holds source selection settings.
type ConnectorConfig struct {
	Provider   string
	KernelOnly bool
	Units      []string // systemd units to include
	Files      []string // paths for the file connector, "-" for stdin
	Extra      map[string]string
}

// QueryParams defines the window for a retrospective query.
type QueryParams struct {
	Since string // journalctl syntax: "1 hour ago", "2026-10-17 10:00:00", "today"
	Limit int    // 0 means unlimited
}
