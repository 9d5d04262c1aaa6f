package application

import "context"

// AudioSource yields recorded commands. A payload prefixed with
// domain.TextCommandPrefix carries text and skips speech-to-text.
type AudioSource interface {
	Start(ctx context.Context) error
	Stop() error
	NextCommand(ctx context.Context) ([]byte, error)
	Name() string
}
