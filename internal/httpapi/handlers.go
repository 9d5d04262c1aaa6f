package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"home-dispatch/internal/application"
	"home-dispatch/internal/domain"
	"home-dispatch/internal/home"
)

const maxCommandBytes = 4096

type commandRequest struct {
	Text string `json:"text"`
}

type ActionView struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CommandResponse is the JSON body returned for a dispatched command.
type CommandResponse struct {
	ID         string        `json:"id"`
	Transcript string        `json:"transcript,omitempty"`
	Response   string        `json:"response"`
	Status     string        `json:"status"`
	State      home.Snapshot `json:"state"`
	Actions    []ActionView  `json:"actions"`
	Error      string        `json:"error,omitempty"`
}

func newCommandResponse(res *application.Result) CommandResponse {
	out := CommandResponse{
		ID:       res.ID,
		Response: res.Response(),
		Status:   res.Status,
		State:    res.Snapshot,
		Actions:  make([]ActionView, 0, len(res.Outcomes)),
	}
	if res.Err != nil {
		out.Error = errorKind(res.Err)
	}
	for _, o := range res.Outcomes {
		v := ActionView{
			ID:      o.Request.ID,
			Name:    o.Request.Name,
			Status:  string(o.Status()),
			Message: o.Message,
			Reason:  o.Reason(),
		}
		if o.Err != nil {
			v.Error = o.Err.Error()
		}
		out.Actions = append(out.Actions, v)
	}
	return out
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, domain.ErrCancelled):
		return "cancelled"
	case errors.Is(err, domain.ErrResolverUnavailable):
		return "resolver_unavailable"
	default:
		return "internal"
	}
}

// statusCode maps a dispatch result to an HTTP status. Skipped actions do
// not fail the request.
func statusCode(res *application.Result) int {
	switch {
	case res.Err == nil:
		return http.StatusOK
	case errors.Is(res.Err, domain.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(res.Err, domain.ErrCancelled):
		return http.StatusRequestTimeout
	default:
		return http.StatusServiceUnavailable
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.dispatcher.Store().Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": snap.String(),
		"state":  snap,
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"operations": s.dispatcher.Catalog().Specs()})
}

// handleCommand accepts {"text": "..."} as JSON, or the command itself as a
// plain-text or form body.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	text, err := readCommandText(w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.dispatcher.Handle(r.Context(), text)
	writeJSON(w, statusCode(res), newCommandResponse(res))
}

func readCommandText(w http.ResponseWriter, r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	body := http.MaxBytesReader(w, r.Body, maxCommandBytes)

	switch mediaType {
	case "application/json":
		var req commandRequest
		if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return "", errors.New("invalid JSON body")
		}
		return req.Text, nil
	case "application/x-www-form-urlencoded":
		r.Body = body
		if err := r.ParseForm(); err != nil {
			return "", errors.New("invalid form body")
		}
		return r.PostFormValue("text"), nil
	default:
		data, err := io.ReadAll(body)
		if err != nil {
			return "", errors.New("command too large")
		}
		return string(data), nil
	}
}

// handleAudio transcribes the request body and dispatches the transcript.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxAudioBytes))
	if err != nil {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "audio too large")
		return
	}
	if len(data) == 0 {
		writeJSONError(w, http.StatusBadRequest, "empty audio")
		return
	}

	text, err := s.stt.Transcribe(r.Context(), data)
	if err != nil {
		s.logger.Error("transcribing audio", "error", err)
		writeJSONError(w, http.StatusBadGateway, "transcription failed")
		return
	}
	s.logger.Info("transcribed", "text", text)

	res := s.dispatcher.Handle(r.Context(), strings.TrimSpace(text))
	out := newCommandResponse(res)
	out.Transcript = text
	writeJSON(w, statusCode(res), out)
}
