package application

import (
	"context"
	"sync"

	"home-dispatch/internal/domain"
)

const DefaultHistoryTurns = 10

// Session is a conversation with bounded history. Commands on one session
// are handled one at a time; sessions share the dispatcher's store.
type Session struct {
	d        *Dispatcher
	maxTurns int

	mu    sync.Mutex
	turns []domain.Turn
}

// NewSession starts a conversation that keeps the last maxTurns exchanges.
// A non-positive maxTurns keeps no history.
func (d *Dispatcher) NewSession(maxTurns int) *Session {
	return &Session{d: d, maxTurns: maxTurns}
}

func (s *Session) Handle(ctx context.Context, text string) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]domain.Turn, len(s.turns))
	copy(history, s.turns)

	res := s.d.handle(ctx, history, text)
	if res.Err == nil {
		s.record(res)
	}
	return res
}

// History returns a copy of the recorded turns.
func (s *Session) History() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}

func (s *Session) record(res *Result) {
	if s.maxTurns <= 0 {
		return
	}
	s.turns = append(s.turns,
		domain.Turn{Role: domain.RoleUser, Content: res.Input},
		domain.Turn{Role: domain.RoleAssistant, Content: res.Response()},
	)
	if excess := len(s.turns) - 2*s.maxTurns; excess > 0 {
		s.turns = append([]domain.Turn(nil), s.turns[excess:]...)
	}
}
