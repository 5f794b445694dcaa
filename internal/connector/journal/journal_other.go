//go:build !linux || !cgo

package journal

import (
	"context"
	"fmt"

	"github.com/crimson-sun/whistle/internal/connector"
	"github.com/crimson-sun/whistle/internal/model"
)

var errUnsupported = fmt.Errorf("%w: journal access needs linux with cgo, use the journalctl source", connector.ErrSourceUnavailable)

func (c *Connector) Query(context.Context, connector.ConnectorConfig, connector.QueryParams) ([]model.RawLog, error) {
	return nil, errUnsupported
}

func (c *Connector) Stream(context.Context, connector.ConnectorConfig) (<-chan model.RawLog, error) {
	return nil, errUnsupported
}
