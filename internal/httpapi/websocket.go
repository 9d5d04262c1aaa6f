package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"home-dispatch/internal/application"
	"home-dispatch/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSMessage is the envelope for both directions. Clients send "command"
// (with Text), "cancel" and "reset"; the server answers with "result",
// "reset" and "error".
type WSMessage struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Result *CommandResponse `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	session := &wsSession{
		conn:    conn,
		session: s.dispatcher.NewSession(s.opts.HistoryTurns),
		server:  s,
		wake:    make(chan struct{}, 1),
	}
	session.run(context.WithoutCancel(r.Context()))
}

type wsCommand struct {
	text   string
	ctx    context.Context
	cancel context.CancelFunc
}

// wsSession handles commands of one connection strictly in arrival order:
// the read loop queues them and a single worker runs them.
type wsSession struct {
	conn    *websocket.Conn
	session *application.Session
	server  *Server
	writeMu sync.Mutex

	mu      sync.Mutex
	pending []*wsCommand
	current *wsCommand
	wake    chan struct{}
}

func (s *wsSession) run(parent context.Context) {
	ctx, stop := context.WithCancel(parent)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.work(ctx)
	}()
	defer wg.Wait()
	defer stop()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.server.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.send(WSMessage{Type: "error", Error: "invalid message format"})
			continue
		}

		switch msg.Type {
		case "command", "message":
			s.enqueue(ctx, msg.Text)
		case "cancel":
			s.cancelAll()
		case "reset":
			s.session.Reset()
			s.send(WSMessage{Type: "reset"})
		default:
			s.send(WSMessage{Type: "error", Error: "unknown message type " + strings.TrimSpace(msg.Type)})
		}
	}
}

func (s *wsSession) enqueue(ctx context.Context, text string) {
	cmdCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.pending = append(s.pending, &wsCommand{text: text, ctx: cmdCtx, cancel: cancel})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *wsSession) work(ctx context.Context) {
	for ctx.Err() == nil {
		cmd := s.dequeue()
		if cmd == nil {
			select {
			case <-ctx.Done():
			case <-s.wake:
			}
			continue
		}
		s.execute(cmd)
	}
}

func (s *wsSession) dequeue() *wsCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	cmd := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	s.current = cmd
	return cmd
}

// execute runs one queued command. Commands cancelled while still queued
// are answered as cancelled without reaching the dispatcher.
func (s *wsSession) execute(cmd *wsCommand) {
	var res *application.Result
	if err := cmd.ctx.Err(); err != nil {
		res = s.cancelled(cmd.text, err)
	} else {
		res = s.session.Handle(cmd.ctx, cmd.text)
	}

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	cmd.cancel()

	out := newCommandResponse(res)
	s.send(WSMessage{Type: "result", Result: &out})
}

func (s *wsSession) cancelled(text string, cause error) *application.Result {
	snap := s.server.dispatcher.Store().Snapshot()
	return &application.Result{
		ID:       uuid.NewString(),
		Input:    text,
		Snapshot: snap,
		Status:   snap.String(),
		Err:      fmt.Errorf("%w: %v", domain.ErrCancelled, cause),
	}
}

// cancelAll aborts the running command and every queued one.
func (s *wsSession) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.cancel()
	}
	for _, cmd := range s.pending {
		cmd.cancel()
	}
}

func (s *wsSession) send(msg WSMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.WriteJSON(msg)
}
