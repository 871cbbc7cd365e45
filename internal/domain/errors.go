package domain

import "errors"

var (
	// ErrUnauthorized is returned when a non-host attempts a host-only action.
	ErrUnauthorized = errors.New("participant is not the session host")
	// ErrInvalidPhase is returned when an action is attempted outside its legal phase.
	ErrInvalidPhase = errors.New("action not legal in current phase")
	// ErrDuplicateAnswer is returned on a second submission for an already-answered round.
	ErrDuplicateAnswer = errors.New("answer already recorded for this round")
	// ErrStaleEvent is returned when a broadcast carries a non-increasing sequence.
	ErrStaleEvent = errors.New("event sequence is not newer than last applied")
	// ErrRoundMismatch is returned when a submission targets a question other than the current one.
	ErrRoundMismatch = errors.New("submission does not target the current question")
	// ErrSessionNotFound is returned when session metadata cannot be resolved.
	ErrSessionNotFound = errors.New("session not found")
	// ErrQuestionSetNotFound indicates the question set could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrUnknownEvent indicates a broadcast with an unrecognized or malformed shape.
	ErrUnknownEvent = errors.New("unknown or malformed event")
)
