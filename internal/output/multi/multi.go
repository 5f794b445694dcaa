package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/whistle/internal/model"
	"github.com/crimson-sun/whistle/internal/output"
)

// Multi fans out outcomes to several outputs, e.g. the console and an
// audit file. A failing output does not stop delivery to the rest.
type Multi struct {
	outputs []output.Output
}

// New creates a Multi over the given outputs; nil entries are skipped.
func New(outputs ...output.Output) *Multi {
	m := &Multi{}
	for _, o := range outputs {
		if o != nil {
			m.outputs = append(m.outputs, o)
		}
	}
	return m
}

// Len returns the number of wrapped outputs.
func (m *Multi) Len() int {
	return len(m.outputs)
}

// Write delivers oc to every output in order and joins their errors.
func (m *Multi) Write(ctx context.Context, oc model.Outcome) error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Write(ctx, oc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every output, even after a failure.
func (m *Multi) Close() error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
