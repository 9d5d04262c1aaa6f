package application

import (
	"context"
	"errors"

	"home-dispatch/internal/home"
)

type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type NoopNotifier struct{}

func (n *NoopNotifier) Notify(_ context.Context, _ string) error {
	return nil
}

// Notifiers fans a message out to every notifier and joins their errors.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, n := range ns {
		if err := n.Notify(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StatePublisher receives the state snapshot after every applied batch.
type StatePublisher interface {
	PublishState(ctx context.Context, snap home.Snapshot) error
}
