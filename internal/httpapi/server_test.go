package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-dispatch/internal/application"
	"home-dispatch/internal/domain"
	"home-dispatch/internal/home"
	"home-dispatch/internal/httpapi"
)

type stubResolver struct {
	mu         sync.Mutex
	resolution *domain.Resolution
	err        error
	block      bool
	texts      []string
}

func (r *stubResolver) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.Resolution, error) {
	r.mu.Lock()
	r.texts = append(r.texts, req.Text)
	r.mu.Unlock()

	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return r.resolution, r.err
}

type stubSTT struct {
	text string
	err  error
}

func (s *stubSTT) Transcribe(_ context.Context, _ []byte) (string, error) {
	return s.text, s.err
}

func lightOn(room string) domain.ActionRequest {
	return domain.ActionRequest{Name: "set_light", Arguments: json.RawMessage(`{"room":"` + room + `","turn_on":true}`)}
}

func newTestServer(t *testing.T, resolver application.IntentResolver, stt application.SpeechToText, opts httpapi.Options) (*httptest.Server, *home.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := home.NewStore()
	d := application.NewDispatcher(store, resolver, logger, application.WithResolverTimeout(time.Second))
	srv := httptest.NewServer(httpapi.NewServer(d, stt, logger, opts).Router())
	t.Cleanup(srv.Close)
	return srv, store
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestCommand_JSON(t *testing.T) {
	resolver := &stubResolver{resolution: &domain.Resolution{
		Reply: "Done.",
		Actions: []domain.ActionRequest{
			lightOn("kitchen"),
			{Name: "open_garage"},
		},
	}}
	srv, store := newTestServer(t, resolver, nil, httpapi.Options{})

	resp, err := http.Post(srv.URL+"/api/command", "application/json", strings.NewReader(`{"text":"kitchen light on and open the garage"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Contains(t, body["response"], "set_light: Light in 'kitchen' is now ON.")
	assert.Contains(t, body["response"], "open_garage: skipped")
	assert.Contains(t, body["status"], "kitchen: ON")

	actions := body["actions"].([]any)
	require.Len(t, actions, 2)
	assert.Equal(t, "applied", actions[0].(map[string]any)["status"])
	assert.Equal(t, "unknown_operation", actions[1].(map[string]any)["reason"])

	on, ok := store.Light("kitchen")
	assert.True(t, ok)
	assert.True(t, on)
}

func TestCommand_PlainText(t *testing.T) {
	resolver := &stubResolver{resolution: &domain.Resolution{Reply: "Hi!"}}
	srv, _ := newTestServer(t, resolver, nil, httpapi.Options{})

	resp, err := http.Post(srv.URL+"/api/command", "text/plain", strings.NewReader("hello there"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, []string{"hello there"}, resolver.texts)
}

func TestCommand_EmptyInput(t *testing.T) {
	resolver := &stubResolver{}
	srv, _ := newTestServer(t, resolver, nil, httpapi.Options{})

	resp, err := http.Post(srv.URL+"/api/command", "application/json", strings.NewReader(`{"text":"   "}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, application.EmptyInputPrompt, body["response"])
	assert.Equal(t, "empty_input", body["error"])
	assert.Empty(t, resolver.texts)
}

func TestCommand_ResolverUnavailable(t *testing.T) {
	resolver := &stubResolver{err: errors.New("connection refused")}
	srv, store := newTestServer(t, resolver, nil, httpapi.Options{})
	before := store.Snapshot()

	resp, err := http.Post(srv.URL+"/api/command", "application/json", strings.NewReader(`{"text":"lights on"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "resolver_unavailable", body["error"])
	assert.Contains(t, body["response"], "No changes were made.")
	assert.Equal(t, before, store.Snapshot())
}

func TestStatusAndCatalog(t *testing.T) {
	srv, _ := newTestServer(t, &stubResolver{}, nil, httpapi.Options{})

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	body := decode(t, resp)
	assert.Equal(t, "Lights -> [living room: OFF, kitchen: OFF, bedroom: OFF]\nThermostat -> 20.0°C\nDoors -> LOCKED\nMusic -> None", body["status"])

	resp, err = http.Get(srv.URL + "/api/catalog")
	require.NoError(t, err)
	body = decode(t, resp)
	ops := body["operations"].([]any)
	require.Len(t, ops, 6)
	assert.Equal(t, "set_light", ops[0].(map[string]any)["name"])
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubResolver{}, nil, httpapi.Options{})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(page), "/api/command")

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, "ok", decode(t, resp)["status"])

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	metrics, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(metrics), "go_goroutines")
}

func TestAudio(t *testing.T) {
	resolver := &stubResolver{resolution: &domain.Resolution{Actions: []domain.ActionRequest{lightOn("bedroom")}}}
	srv, store := newTestServer(t, resolver, &stubSTT{text: " bedroom light on "}, httpapi.Options{})

	resp, err := http.Post(srv.URL+"/api/audio", "audio/wav", bytes.NewReader([]byte("RIFF....WAVE")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, " bedroom light on ", body["transcript"])
	assert.Equal(t, []string{"bedroom light on"}, resolver.texts)

	on, _ := store.Light("bedroom")
	assert.True(t, on)
}

func TestAudio_TranscriptionFailure(t *testing.T) {
	resolver := &stubResolver{}
	srv, _ := newTestServer(t, resolver, &stubSTT{err: errors.New("boom")}, httpapi.Options{})

	resp, err := http.Post(srv.URL+"/api/audio", "audio/wav", bytes.NewReader([]byte("data")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()
	assert.Empty(t, resolver.texts)
}

func TestRateLimit(t *testing.T) {
	resolver := &stubResolver{resolution: &domain.Resolution{Reply: "ok"}}
	srv, _ := newTestServer(t, resolver, nil, httpapi.Options{RequestsPerMinute: 1, Burst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Post(srv.URL+"/api/command", "text/plain", strings.NewReader("status"))
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) httpapi.WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg httpapi.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_Command(t *testing.T) {
	resolver := &stubResolver{resolution: &domain.Resolution{Reply: "Lights on.", Actions: []domain.ActionRequest{lightOn("kitchen")}}}
	srv, _ := newTestServer(t, resolver, nil, httpapi.Options{})
	conn := dialWS(t, srv)

	require.NoError(t, conn.WriteJSON(httpapi.WSMessage{Type: "command", Text: "kitchen lights on"}))

	msg := readWS(t, conn)
	assert.Equal(t, "result", msg.Type)
	require.NotNil(t, msg.Result)
	assert.Contains(t, msg.Result.Response, "Lights on.")
	assert.Contains(t, msg.Result.Status, "kitchen: ON")
}

func TestWebSocket_Cancel(t *testing.T) {
	resolver := &stubResolver{block: true}
	srv, store := newTestServer(t, resolver, nil, httpapi.Options{})
	before := store.Snapshot()
	conn := dialWS(t, srv)

	require.NoError(t, conn.WriteJSON(httpapi.WSMessage{Type: "command", Text: "lock the doors"}))
	require.Eventually(t, func() bool {
		resolver.mu.Lock()
		defer resolver.mu.Unlock()
		return len(resolver.texts) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(httpapi.WSMessage{Type: "cancel"}))

	msg := readWS(t, conn)
	require.NotNil(t, msg.Result)
	assert.Equal(t, "cancelled", msg.Result.Error)
	assert.Equal(t, before, store.Snapshot())
}

func TestWebSocket_InvalidMessage(t *testing.T) {
	srv, _ := newTestServer(t, &stubResolver{}, nil, httpapi.Options{})
	conn := dialWS(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	msg := readWS(t, conn)
	assert.Equal(t, "error", msg.Type)
}

func TestWebSocket_CommandsRunInArrivalOrder(t *testing.T) {
	resolver := &stubResolver{resolution: &domain.Resolution{Reply: "ok"}}
	srv, _ := newTestServer(t, resolver, nil, httpapi.Options{})
	conn := dialWS(t, srv)

	var sent []string
	for i := 0; i < 30; i++ {
		text := fmt.Sprintf("c%02d", i)
		sent = append(sent, text)
		require.NoError(t, conn.WriteJSON(httpapi.WSMessage{Type: "command", Text: text}))
	}

	for range sent {
		msg := readWS(t, conn)
		require.Equal(t, "result", msg.Type)
		require.NotNil(t, msg.Result)
	}

	resolver.mu.Lock()
	defer resolver.mu.Unlock()
	assert.Equal(t, sent, resolver.texts)
}

func TestWebSocket_CancelDropsQueuedCommands(t *testing.T) {
	resolver := &stubResolver{block: true}
	srv, store := newTestServer(t, resolver, nil, httpapi.Options{})
	before := store.Snapshot()
	conn := dialWS(t, srv)

	for _, text := range []string{"lock the doors", "play jazz", "heat to 25"} {
		require.NoError(t, conn.WriteJSON(httpapi.WSMessage{Type: "command", Text: text}))
	}
	require.Eventually(t, func() bool {
		resolver.mu.Lock()
		defer resolver.mu.Unlock()
		return len(resolver.texts) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(httpapi.WSMessage{Type: "cancel"}))

	for i := 0; i < 3; i++ {
		msg := readWS(t, conn)
		require.NotNil(t, msg.Result)
		assert.Equal(t, "cancelled", msg.Result.Error)
	}

	resolver.mu.Lock()
	assert.Equal(t, []string{"lock the doors"}, resolver.texts)
	resolver.mu.Unlock()
	assert.Equal(t, before, store.Snapshot())
}
