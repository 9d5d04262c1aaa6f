package application

import (
	"context"
	"fmt"
	"log/slog"

	"home-dispatch/internal/domain"
)

// Listener feeds commands from an audio source through speech-to-text into
// the dispatcher, one at a time, as a single conversation.
type Listener struct {
	audio    AudioSource
	stt      SpeechToText
	session  *Session
	logger   *slog.Logger
	onResult func(*Result)
}

func NewListener(audio AudioSource, stt SpeechToText, dispatcher *Dispatcher, historyTurns int, logger *slog.Logger) *Listener {
	return &Listener{
		audio:    audio,
		stt:      stt,
		session:  dispatcher.NewSession(historyTurns),
		logger:   logger,
		onResult: func(*Result) {},
	}
}

// OnResult registers a callback invoked after every handled command.
func (l *Listener) OnResult(fn func(*Result)) {
	if fn != nil {
		l.onResult = fn
	}
}

func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("starting audio source", "source", l.audio.Name())
	if err := l.audio.Start(ctx); err != nil {
		return fmt.Errorf("starting audio: %w", err)
	}
	defer l.audio.Stop()

	l.logger.Info("listener ready, waiting for commands")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := l.processOneCommand(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				l.logger.Error("processing command", "error", err)
			}
		}
	}
}

func (l *Listener) processOneCommand(ctx context.Context) error {
	audioData, err := l.audio.NextCommand(ctx)
	if err != nil {
		return fmt.Errorf("getting audio: %w", err)
	}

	if len(audioData) == 0 {
		return nil
	}

	var text string

	if directText, isText := IsTextCommand(audioData); isText {
		l.logger.Info("received text command directly", "text", directText)
		text = directText
	} else {
		l.logger.Info("received audio", "bytes", len(audioData))

		text, err = l.stt.Transcribe(ctx, audioData)
		if err != nil {
			return fmt.Errorf("transcribing: %w", err)
		}

		l.logger.Info("transcribed", "text", text)
	}

	res := l.session.Handle(ctx, text)
	l.logger.Info("command handled",
		"dispatch_id", res.ID,
		"applied", res.Applied(),
		"skipped", res.Skipped(),
		"response", res.Response(),
	)
	l.onResult(res)

	return nil
}

// IsTextCommand reports whether data carries a text command rather than audio.
func IsTextCommand(data []byte) (string, bool) {
	if len(data) > len(domain.TextCommandPrefix) && string(data[:len(domain.TextCommandPrefix)]) == domain.TextCommandPrefix {
		return string(data[len(domain.TextCommandPrefix):]), true
	}
	return "", false
}
