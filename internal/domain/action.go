package domain

import (
	"encoding/json"
	"errors"
)

// TextCommandPrefix marks a text command travelling through an audio source.
const TextCommandPrefix = "__TEXT__:"

// ActionRequest is one invocation decided by the intent resolver.
// Arguments are kept raw so malformed model output fails only this action.
type ActionRequest struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type OutcomeStatus string

const (
	OutcomeApplied OutcomeStatus = "applied"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// ActionOutcome is the result of executing a single ActionRequest.
type ActionOutcome struct {
	Request ActionRequest
	Message string
	Err     error
}

func (o ActionOutcome) Status() OutcomeStatus {
	if o.Err != nil {
		return OutcomeSkipped
	}
	return OutcomeApplied
}

// Reason classifies a skipped action by its sentinel error.
func (o ActionOutcome) Reason() string {
	switch {
	case o.Err == nil:
		return ""
	case errors.Is(o.Err, ErrUnknownOperation):
		return "unknown_operation"
	case errors.Is(o.Err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "failed"
	}
}
