package domain

import (
	"errors"
	"fmt"
)

// The service-wide error taxonomy. Every failure the HTTP layer has to
// distinguish maps onto exactly one of these sentinels.
var (
	// ErrInvalidTransition means the requested status edge is not in the
	// allowed transition graph. Client error; nothing was changed.
	ErrInvalidTransition = errors.New("invalid conversation transition")

	// ErrAlreadyClaimed means another operator won the claim race. The caller
	// should refresh and retry against the new state.
	ErrAlreadyClaimed = errors.New("conversation already claimed")

	// ErrPersistence means the store rejected a write. No partial state is
	// left behind; the request is retryable.
	ErrPersistence = errors.New("persistence failure")

	// ErrExternalUnavailable means a collaborator (messaging gateway,
	// semantic index) could not be reached.
	ErrExternalUnavailable = errors.New("external service unavailable")

	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
)

// TransitionError carries the context of a rejected or failed lifecycle
// transition so it can be correlated with the audit trail.
type TransitionError struct {
	ConversationID string
	From           ConversationStatus
	To             ConversationStatus
	Actor          string
	Err            error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s on conversation %s by %s: %v",
		e.From, e.To, e.ConversationID, e.Actor, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// NewTransitionError wraps a sentinel with transition context.
func NewTransitionError(conversationID string, from, to ConversationStatus, actor string, err error) *TransitionError {
	return &TransitionError{
		ConversationID: conversationID,
		From:           from,
		To:             to,
		Actor:          actor,
		Err:            err,
	}
}
