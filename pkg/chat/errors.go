package chat

import (
	"errors"
	"fmt"
)

// Kind classifies a turn failure
type Kind string

const (
	KindMissingDomain      Kind = "MissingDomain"
	KindSessionNotFound    Kind = "SessionNotFound"
	KindMissingUserMessage Kind = "MissingUserMessage"
	KindUpstreamError      Kind = "UpstreamError"
	KindEmptyUpstreamReply Kind = "EmptyUpstreamReply"
	KindInternalError      Kind = "InternalError"
)

// Error is a turn failure with a machine-checkable kind
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, ErrSessionNotFound) works
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrMissingDomain      = &Error{Kind: KindMissingDomain, Message: "domain is required"}
	ErrSessionNotFound    = &Error{Kind: KindSessionNotFound, Message: "session not found"}
	ErrMissingUserMessage = &Error{Kind: KindMissingUserMessage, Message: "user message is required on a follow-up turn"}
	ErrUpstream           = &Error{Kind: KindUpstreamError, Message: "upstream call failed"}
	ErrEmptyUpstreamReply = &Error{Kind: KindEmptyUpstreamReply, Message: "empty response from upstream"}
	ErrInternal           = &Error{Kind: KindInternalError, Message: "internal error"}
)

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternalError for anything that is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternalError
}

// Internal wraps an unexpected fault
func Internal(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return newError(KindInternalError, "internal error", err)
}
