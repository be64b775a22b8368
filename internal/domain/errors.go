package domain

import "errors"

var (
	// ErrInvalidTransition is returned when an operation is called outside the
	// phase it is valid in (e.g. checking an answer from the intro form).
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrNameRequired is returned when the intro form is submitted without a name.
	ErrNameRequired = errors.New("name is required")
	// ErrAnswerLocked is returned when re-checking a question that was already
	// answered correctly and not advanced past.
	ErrAnswerLocked = errors.New("answer locked for current question")
	// ErrNotChecked is returned when advancing before the current question has
	// been checked at least once.
	ErrNotChecked = errors.New("current question not checked")
	// ErrAtFirstQuestion is returned when retreating from index 0.
	ErrAtFirstQuestion = errors.New("already at first question")
	// ErrSessionNotFound is returned when no session exists for a page path.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSetNotFound indicates the question set could not be loaded.
	ErrSetNotFound = errors.New("question set not found")
)
