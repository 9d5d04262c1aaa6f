package application

import (
	"errors"
	"fmt"
	"strings"

	"home-dispatch/internal/domain"
	"home-dispatch/internal/home"
)

const (
	EmptyInputPrompt = "Please enter a command."
	NothingToDo      = "I couldn't find anything to do for that request."
)

// Result is everything one dispatch cycle produced. Err is set only when no
// action was attempted (empty input, resolver failure, cancellation).
type Result struct {
	ID       string
	Input    string
	Reply    string
	Outcomes []domain.ActionOutcome
	Status   string
	Snapshot home.Snapshot
	Err      error
}

func (r *Result) Applied() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

func (r *Result) Skipped() int {
	return len(r.Outcomes) - r.Applied()
}

// Response is the user-visible text, excluding the status snapshot.
func (r *Result) Response() string {
	switch {
	case errors.Is(r.Err, domain.ErrEmptyInput):
		return EmptyInputPrompt
	case errors.Is(r.Err, domain.ErrCancelled):
		return "Command cancelled. No changes were made."
	case r.Err != nil:
		return fmt.Sprintf("Sorry, the assistant is unavailable right now (%v). No changes were made.", r.Err)
	}

	if r.Reply == "" && len(r.Outcomes) == 0 {
		return NothingToDo
	}

	var sb strings.Builder
	sb.WriteString(r.Reply)
	if len(r.Outcomes) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Actions:")
		for _, o := range r.Outcomes {
			sb.WriteString("\n- ")
			sb.WriteString(describeOutcome(o))
		}
	}
	return sb.String()
}

// Summary is a one-line digest of the applied actions, used for
// notifications.
func (r *Result) Summary() string {
	var msgs []string
	for _, o := range r.Outcomes {
		if o.Err == nil && o.Request.Name != "status" {
			msgs = append(msgs, o.Message)
		}
	}
	if len(msgs) == 0 {
		return r.Reply
	}
	return strings.Join(msgs, " ")
}

func describeOutcome(o domain.ActionOutcome) string {
	if o.Err != nil {
		return fmt.Sprintf("%s: skipped (%v)", o.Request.Name, o.Err)
	}
	if o.Request.Name == "status" {
		return "status: reported"
	}
	return fmt.Sprintf("%s: %s", o.Request.Name, o.Message)
}
