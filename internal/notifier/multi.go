package notifier

import (
	"context"
	"errors"
)

// Multi fans a notification out to every sink and joins the failures.
type Multi struct {
	Sinks []Notifier
}

func (n *Multi) Notify(ctx context.Context, m Message) error {
	var errs []error
	for _, s := range n.Sinks {
		if err := s.Notify(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
