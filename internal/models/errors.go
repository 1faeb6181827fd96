package models

import "errors"

// Sentinel errors for the engine's error taxonomy. Services wrap these with
// fmt.Errorf("...: %w", ...) and handlers map them to HTTP status codes
// with errors.Is.
var (
	// ErrNotFound: unknown quiz, session, question, or topic.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState: operation attempted on a terminal session.
	ErrInvalidState = errors.New("invalid session state")

	// ErrDuplicateAnswer: second submission for an already-answered question.
	ErrDuplicateAnswer = errors.New("question already answered")

	// ErrValidation: malformed payload or quiz outside configured bounds.
	ErrValidation = errors.New("validation failed")

	// ErrConflict: lost update on a mastery row after bounded retries.
	ErrConflict = errors.New("concurrent update conflict")
)
