//go:build !portaudio

package audio_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"home-dispatch/internal/infra/audio"
)

func TestMicrophoneSource_UnavailableWithoutPortaudio(t *testing.T) {
	mic := audio.NewMicrophoneSource(16000, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := mic.Start(context.Background()); !errors.Is(err, audio.ErrMicrophoneUnavailable) {
		t.Errorf("Start: got %v, want ErrMicrophoneUnavailable", err)
	}
	if _, err := mic.NextCommand(context.Background()); !errors.Is(err, audio.ErrMicrophoneUnavailable) {
		t.Errorf("NextCommand: got %v, want ErrMicrophoneUnavailable", err)
	}
}
