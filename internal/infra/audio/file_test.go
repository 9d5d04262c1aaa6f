package audio_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"home-dispatch/internal/domain"
	"home-dispatch/internal/infra/audio"
)

func TestFileSource_ReadsAudioFiles(t *testing.T) {
	dir := t.TempDir()
	source := audio.NewFileSource(dir).WithPollInterval(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := source.Start(ctx); err != nil {
		t.Fatalf("starting source: %v", err)
	}
	defer source.Stop()

	testAudio := []byte("fake wav content")
	if err := os.WriteFile(filepath.Join(dir, "command.wav"), testAudio, 0o644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	received, err := source.NextCommand(ctx)
	if err != nil {
		t.Fatalf("receiving audio: %v", err)
	}

	if string(received) != string(testAudio) {
		t.Errorf("audio mismatch: got %q, want %q", received, testAudio)
	}

	if _, err := os.Stat(filepath.Join(dir, "command.wav.processed")); err != nil {
		t.Errorf("expected file to be marked processed: %v", err)
	}
}

func TestFileSource_ReadsTextCommands(t *testing.T) {
	dir := t.TempDir()
	source := audio.NewFileSource(dir).WithPollInterval(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := os.WriteFile(filepath.Join(dir, "cmd.txt"), []byte("  lock the doors\n"), 0o644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	received, err := source.NextCommand(ctx)
	if err != nil {
		t.Fatalf("receiving command: %v", err)
	}

	want := domain.TextCommandPrefix + "lock the doors"
	if string(received) != want {
		t.Errorf("got %q, want %q", received, want)
	}
}

func TestFileSource_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	source := audio.NewFileSource(dir).WithPollInterval(10 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := source.NextCommand(ctx); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestEncodeWAV(t *testing.T) {
	wav := audio.EncodeWAV([]int16{0, 1000, -1000, 0}, 16000)

	if len(wav) != 44+8 {
		t.Fatalf("length: got %d, want %d", len(wav), 52)
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Errorf("unexpected header: %q", wav[:44])
	}
}

func TestFileSource_WakesOnDirectoryEvents(t *testing.T) {
	dir := t.TempDir()
	source := audio.NewFileSource(dir).WithPollInterval(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := source.Start(ctx); err != nil {
		t.Fatalf("starting source: %v", err)
	}
	defer source.Stop()
	if !source.Watching() {
		t.Skip("fsnotify unavailable on this filesystem")
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "later.txt"), []byte("stop the music"), 0o644)
	}()

	received, err := source.NextCommand(ctx)
	if err != nil {
		t.Fatalf("receiving command: %v", err)
	}
	if want := domain.TextCommandPrefix + "stop the music"; string(received) != want {
		t.Errorf("got %q, want %q", received, want)
	}
}
