package notify

import (
	"context"
	"errors"
)

// Multi sends every message to each notifier in turn. One failing channel
// does not stop delivery to the others.
type Multi []Notifier

// Notify delivers to all notifiers and joins their errors.
func (m Multi) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
