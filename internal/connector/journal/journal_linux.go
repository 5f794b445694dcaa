//go:build linux && cgo

package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/sdjournal"
	"go.uber.org/zap"

	"github.com/crimson-sun/whistle/internal/connector"
	"github.com/crimson-sun/whistle/internal/model"
)

func (c *Connector) open(cfg connector.ConnectorConfig) (*sdjournal.Journal, error) {
	j, err := sdjournal.NewJournal()
	if err != nil {
		return nil, fmt.Errorf("%w: opening journal: %w", connector.ErrSourceUnavailable, err)
	}
	for i, m := range Matches(cfg) {
		if i > 0 {
			if err := j.AddDisjunction(); err != nil {
				j.Close()
				return nil, fmt.Errorf("journal disjunction: %w", err)
			}
		}
		if err := j.AddMatch(m); err != nil {
			j.Close()
			return nil, fmt.Errorf("journal match %q: %w", m, err)
		}
	}
	return j, nil
}

func (c *Connector) entry(j *sdjournal.Journal) (model.RawLog, error) {
	e, err := j.GetEntry()
	if err != nil {
		return model.RawLog{}, err
	}
	ts := time.UnixMicro(int64(e.RealtimeTimestamp))
	return model.RawLog{
		Timestamp: ts,
		Source:    name,
		Raw:       FormatLine(ts, e.Fields),
		Metadata:  map[string]any{"unit": e.Fields["_SYSTEMD_UNIT"], "priority": e.Fields["PRIORITY"]},
	}, nil
}

// Query reads matching entries written since params.Since, oldest first.
func (c *Connector) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) ([]model.RawLog, error) {
	since, err := connector.ParseSince(params.Since, c.now())
	if err != nil {
		return nil, err
	}
	j, err := c.open(cfg)
	if err != nil {
		return nil, err
	}
	defer j.Close()

	if since.IsZero() {
		err = j.SeekHead()
	} else {
		err = j.SeekRealtimeUsec(uint64(since.UnixMicro()))
	}
	if err != nil {
		return nil, fmt.Errorf("journal seek: %w", err)
	}

	var out []model.RawLog
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := j.Next()
		if err != nil {
			return nil, fmt.Errorf("journal next: %w", err)
		}
		if n == 0 {
			break
		}
		l, err := c.entry(j)
		if err != nil {
			c.logger.Warn("skipping unreadable entry", zap.Error(err))
			continue
		}
		out = append(out, l)
	}
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[len(out)-params.Limit:]
	}
	return out, nil
}

// Stream follows the journal from its current tail.
func (c *Connector) Stream(ctx context.Context, cfg connector.ConnectorConfig) (<-chan model.RawLog, error) {
	j, err := c.open(cfg)
	if err != nil {
		return nil, err
	}
	if err := j.SeekTail(); err != nil {
		j.Close()
		return nil, fmt.Errorf("journal seek tail: %w", err)
	}
	// SeekTail positions after the last entry; step back so Next yields
	// only entries appended from here on.
	if _, err := j.Previous(); err != nil {
		j.Close()
		return nil, fmt.Errorf("journal previous: %w", err)
	}

	ch := make(chan model.RawLog)
	go func() {
		defer close(ch)
		defer j.Close()
		for {
			if ctx.Err() != nil {
				return
			}
			n, err := j.Next()
			if err != nil {
				c.logger.Error("journal next", zap.Error(err))
				return
			}
			if n == 0 {
				j.Wait(c.poll)
				continue
			}
			l, err := c.entry(j)
			if err != nil {
				c.logger.Warn("skipping unreadable entry", zap.Error(err))
				continue
			}
			select {
			case ch <- l:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
