// Package oracle defines the boundary to the external classification service.
package oracle

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the service answers with no content.
var ErrEmptyResponse = errors.New("oracle: empty response")

// Request is what the classifier sends for one log entry.
type Request struct {
	Entry string // already truncated
	Hints string // optional operator policy, e.g. "404s from nginx are expected"
}

// Oracle classifies a log entry and returns the raw response text.
// Implementations own prompt construction and transport; response
// validation happens in the classifier.
type Oracle interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to the Oracle interface.
type Func func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
