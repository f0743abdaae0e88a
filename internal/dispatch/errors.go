package dispatch

import (
	"errors"

	"github.com/m3rciful/adminbot/internal/chat"
)

// Error kinds recorded in Result.Kind, logs and metrics.
const (
	KindOK         = "ok"
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindCapacity   = "capacity"
	KindDuplicate  = "duplicate"
	KindFailure    = "failure"
)

// DefaultFailureText is sent when a handler fails for reasons the user cannot fix.
const DefaultFailureText = "⚠️ Something went wrong. Contact DevOps."

// ValidationError rejects malformed input. Handlers keep the intent so the
// user can retry.
type ValidationError struct {
	Reply chat.Message
}

func (e *ValidationError) Error() string { return "validation: " + e.Reply.Text }

// NotFoundError reports that a referenced record vanished.
type NotFoundError struct {
	Reply chat.Message
}

func (e *NotFoundError) Error() string { return "not found: " + e.Reply.Text }

// CapacityError reports that a bounded resource is full. Nothing was mutated.
type CapacityError struct {
	Reply chat.Message
}

func (e *CapacityError) Error() string { return "capacity: " + e.Reply.Text }

// DuplicateError reports that the record the user sent already exists. The
// input was well formed, so handlers consume the intent.
type DuplicateError struct {
	Reply chat.Message
}

func (e *DuplicateError) Error() string { return "duplicate: " + e.Reply.Text }

// Invalid returns a ValidationError replying text.
func Invalid(text string) error {
	return &ValidationError{Reply: chat.Message{Text: text}}
}

// Missing returns a NotFoundError replying text.
func Missing(text string) error {
	return &NotFoundError{Reply: chat.Message{Text: text}}
}

// Full returns a CapacityError replying text.
func Full(text string) error {
	return &CapacityError{Reply: chat.Message{Text: text}}
}

// Exists returns a DuplicateError replying text.
func Exists(text string) error {
	return &DuplicateError{Reply: chat.Message{Text: text}}
}

// classify maps a handler error to its kind and, for user-facing errors, the
// reply to send.
func classify(err error) (string, chat.Message, bool) {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		capacity   *CapacityError
		duplicate  *DuplicateError
	)
	switch {
	case err == nil:
		return KindOK, chat.Message{}, false
	case errors.As(err, &validation):
		return KindValidation, validation.Reply, true
	case errors.As(err, &notFound):
		return KindNotFound, notFound.Reply, true
	case errors.As(err, &capacity):
		return KindCapacity, capacity.Reply, true
	case errors.As(err, &duplicate):
		return KindDuplicate, duplicate.Reply, true
	}
	return KindFailure, chat.Message{}, false
}
