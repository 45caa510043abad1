package board

import (
	"fmt"

	errors "github.com/Laisky/errors/v2"
)

// ErrorKind identifies why a submission failed.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindRateLimit   ErrorKind = "rate_limit"
	KindModeration  ErrorKind = "moderation"
	KindPersistence ErrorKind = "persistence"
)

// Validation messages.
const (
	MsgEmptyContent     = "empty content"
	MsgContentTooLong   = "content too long"
	MsgNicknameTooLong  = "nickname too long"
	MsgUnsupportedType  = "unsupported type"
	MsgImageTooLarge    = "too large"
	MsgUnreadableImage  = "unreadable image"
	msgDefaultModerated = "content rejected by moderation"
)

// SubmissionError is the typed failure of a submission attempt.
type SubmissionError struct {
	Kind    ErrorKind
	Message string
	// RemainingSeconds is set for KindRateLimit.
	RemainingSeconds int
	// Err is the underlying cause, if any.
	Err error
}

// Error returns the error message.
func (e *SubmissionError) Error() string {
	if e == nil {
		return "submission error: <nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("submission error: %s", e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *SubmissionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewValidationError builds a validation failure
func NewValidationError(message string) *SubmissionError {
	return &SubmissionError{Kind: KindValidation, Message: message}
}

// NewRateLimitError builds a rate limit failure
func NewRateLimitError(remainingSeconds int) *SubmissionError {
	return &SubmissionError{
		Kind:             KindRateLimit,
		Message:          fmt.Sprintf("please wait %d seconds before posting again", remainingSeconds),
		RemainingSeconds: remainingSeconds,
	}
}

// NewModerationError builds a moderation rejection
func NewModerationError(reason string) *SubmissionError {
	if reason == "" {
		reason = msgDefaultModerated
	}
	return &SubmissionError{Kind: KindModeration, Message: reason}
}

// NewPersistenceError wraps a store failure
func NewPersistenceError(err error) *SubmissionError {
	msg := "failed to save post"
	if err != nil {
		msg = err.Error()
	}
	return &SubmissionError{Kind: KindPersistence, Message: msg, Err: err}
}

// AsSubmissionError extracts a SubmissionError from the error chain.
func AsSubmissionError(err error) (*SubmissionError, bool) {
	if err == nil {
		return nil, false
	}
	var typed *SubmissionError
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// IsKind reports whether the error chain contains a SubmissionError of kind.
func IsKind(err error, kind ErrorKind) bool {
	if typed, ok := AsSubmissionError(err); ok {
		return typed.Kind == kind
	}
	return false
}
