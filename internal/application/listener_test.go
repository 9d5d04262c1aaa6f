package application_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"home-dispatch/internal/application"
	"home-dispatch/internal/domain"
	"home-dispatch/internal/home"
)

type mockAudioSource struct {
	commands [][]byte
	index    int
}

func (m *mockAudioSource) Start(_ context.Context) error { return nil }
func (m *mockAudioSource) Stop() error                   { return nil }
func (m *mockAudioSource) Name() string                  { return "mock" }

func (m *mockAudioSource) NextCommand(ctx context.Context) ([]byte, error) {
	if m.index >= len(m.commands) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	audio := m.commands[m.index]
	m.index++
	return audio, nil
}

type mockSTT struct {
	mu             sync.Mutex
	transcriptions map[string]string
	calls          int
}

func (m *mockSTT) Transcribe(_ context.Context, audio []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if text, ok := m.transcriptions[string(audio)]; ok {
		return text, nil
	}
	return "unknown command", nil
}

type textResolver struct {
	intents map[string][]domain.ActionRequest
}

func (r *textResolver) Resolve(_ context.Context, req domain.ResolveRequest) (*domain.Resolution, error) {
	return &domain.Resolution{Actions: r.intents[req.Text]}, nil
}

func raw(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func TestListener_ProcessCommands(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	audioSource := &mockAudioSource{
		commands: [][]byte{
			[]byte("kitchen on"),
			[]byte(domain.TextCommandPrefix + "play some jazz"),
		},
	}

	stt := &mockSTT{
		transcriptions: map[string]string{
			"kitchen on": "turn on the kitchen light",
		},
	}

	resolver := &textResolver{
		intents: map[string][]domain.ActionRequest{
			"turn on the kitchen light": {
				{Name: "set_light", Arguments: raw(map[string]any{"room": "Kitchen", "turn_on": true})},
			},
			"play some jazz": {
				{Name: "play_music", Arguments: raw(map[string]any{"genre": "jazz"})},
			},
		},
	}

	store := home.NewStore()
	dispatcher := application.NewDispatcher(store, resolver, logger)
	listener := application.NewListener(audioSource, stt, dispatcher, application.DefaultHistoryTurns, logger)

	results := make(chan *application.Result, 2)
	listener.OnResult(func(res *application.Result) { results <- res })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- listener.Run(ctx)
	}()

	for i := 0; i < 2; i++ {
		select {
		case res := <-results:
			if res.Applied() != 1 {
				t.Errorf("command %d: applied %d actions, want 1", i, res.Applied())
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for commands to be processed")
		}
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}

	if on, _ := store.Light("kitchen"); !on {
		t.Error("kitchen light should be on")
	}
	if genre, _ := store.MusicPlaying(); genre != "jazz" {
		t.Errorf("music: got %q, want jazz", genre)
	}
	if stt.calls != 1 {
		t.Errorf("STT should only be called for audio, got %d calls", stt.calls)
	}
}

func TestIsTextCommand(t *testing.T) {
	text, ok := application.IsTextCommand([]byte(domain.TextCommandPrefix + "lock the doors"))
	if !ok || text != "lock the doors" {
		t.Errorf("got (%q, %v), want (lock the doors, true)", text, ok)
	}

	if _, ok := application.IsTextCommand([]byte("RIFF....WAVE")); ok {
		t.Error("audio payload must not be treated as text")
	}
}
