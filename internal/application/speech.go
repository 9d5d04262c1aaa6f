package application

import (
	"context"
	"errors"
)

// ErrNoTranscriber is returned when audio arrives but no Whisper key is
// configured. Text commands from the drop directory and the API still work.
var ErrNoTranscriber = errors.New("speech-to-text not configured: set openai.api_key (or OPENAI_API_KEY) to transcribe audio")

// SpeechToText turns a recorded command into text for the dispatcher.
type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// NoopSTT stands in for Whisper when it is not configured.
type NoopSTT struct{}

func (n *NoopSTT) Transcribe(_ context.Context, _ []byte) (string, error) {
	return "", ErrNoTranscriber
}
