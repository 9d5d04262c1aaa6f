package application

import "time"

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithResolverTimeout bounds each intent resolver call.
func WithResolverTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) {
		if n != nil {
			d.notifier = n
		}
	}
}

func WithStatePublisher(p StatePublisher) Option {
	return func(d *Dispatcher) {
		d.publisher = p
	}
}
