//go:build !portaudio

package audio

import (
	"context"
	"errors"
	"log/slog"
)

// ErrMicrophoneUnavailable is returned by builds without portaudio when
// `listen --source microphone` (or audio.source: microphone) is selected.
var ErrMicrophoneUnavailable = errors.New("microphone capture needs a build with -tags portaudio; use audio.source: file instead")

// MicrophoneSource keeps the listener wiring identical in builds without
// portaudio. Every call fails with ErrMicrophoneUnavailable.
type MicrophoneSource struct {
	logger *slog.Logger
}

func NewMicrophoneSource(_ int, logger *slog.Logger) *MicrophoneSource {
	return &MicrophoneSource{logger: logger}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Start(_ context.Context) error {
	m.logger.Error("microphone source selected", "error", ErrMicrophoneUnavailable)
	return ErrMicrophoneUnavailable
}

func (m *MicrophoneSource) Stop() error {
	return nil
}

func (m *MicrophoneSource) NextCommand(_ context.Context) ([]byte, error) {
	return nil, ErrMicrophoneUnavailable
}
