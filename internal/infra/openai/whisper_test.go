package openai_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-dispatch/internal/infra/openai"
)

func TestWhisperClient_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))

		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "command.wav", header.Filename)

		_, _ = w.Write([]byte(`{"text":" Turn on the kitchen light. "}`))
	}))
	defer server.Close()

	client := openai.NewWhisperClientWithURL("test-key", "en", server.URL)

	wav := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)
	text, err := client.Transcribe(context.Background(), wav)
	require.NoError(t, err)
	assert.Equal(t, "Turn on the kitchen light.", text)
}

func TestWhisperClient_RejectsEmptyAudio(t *testing.T) {
	client := openai.NewWhisperClientWithURL("test-key", "en", "http://127.0.0.1:0")

	_, err := client.Transcribe(context.Background(), nil)
	assert.Error(t, err)
}
