package domain

import "errors"

var (
	// ErrEmptyInput is returned for blank commands; no resolver call is made.
	ErrEmptyInput = errors.New("empty input")

	// ErrResolverUnavailable covers resolver timeouts and transport failures.
	ErrResolverUnavailable = errors.New("intent resolver unavailable")

	// ErrCancelled is returned when the caller abandons a command before any action ran.
	ErrCancelled = errors.New("command cancelled")

	ErrUnknownOperation = errors.New("unknown operation")
	ErrInvalidArgument  = errors.New("invalid argument")
)
