//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

// MicrophoneSource records one utterance per NextCommand call: it waits for
// sound, then stops after a second of silence or ten seconds of audio.
type MicrophoneSource struct {
	stream     *portaudio.Stream
	frame      []int16
	sampleRate int
	threshold  int16
	logger     *slog.Logger
}

func NewMicrophoneSource(sampleRate int, logger *slog.Logger) *MicrophoneSource {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &MicrophoneSource{
		sampleRate: sampleRate,
		threshold:  500,
		logger:     logger,
	}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Start(_ context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	m.frame = make([]int16, framesPerBuffer)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), framesPerBuffer, m.frame)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening stream: %w", err)
	}
	m.stream = stream

	if err := m.stream.Start(); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}

	m.logger.Info("microphone started", "sampleRate", m.sampleRate)
	return nil
}

func (m *MicrophoneSource) Stop() error {
	if m.stream != nil {
		m.stream.Stop()
		m.stream.Close()
		m.stream = nil
	}
	portaudio.Terminate()
	return nil
}

func (m *MicrophoneSource) NextCommand(ctx context.Context) ([]byte, error) {
	m.logger.Debug("listening for a command")

	samples := make([]int16, 0, m.sampleRate*5)
	heard := false
	silence := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// Read fills m.frame, the buffer the stream was opened with.
		if err := m.stream.Read(); err != nil {
			return nil, fmt.Errorf("reading from stream: %w", err)
		}

		quiet := isSilent(m.frame, m.threshold)
		if !heard {
			if quiet {
				continue
			}
			heard = true
		}

		samples = append(samples, m.frame...)

		if quiet {
			silence += len(m.frame)
		} else {
			silence = 0
		}

		if silence > m.sampleRate || len(samples) > m.sampleRate*10 {
			break
		}
	}

	return EncodeWAV(samples, m.sampleRate), nil
}
