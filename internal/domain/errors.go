package domain

import "errors"

var (
	// ErrDuplicateUsername is returned when registering an already-taken username.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrInvalidCredentials is returned for unknown usernames and wrong
	// passwords alike, so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrNoQuestionsRemaining signals graceful exhaustion of the question
	// pool. It is a normal termination condition, not a failure.
	ErrNoQuestionsRemaining = errors.New("no more questions available")
	// ErrInvalidAnswerIndex is returned when a submitted answer index is out
	// of range for the question's choices.
	ErrInvalidAnswerIndex = errors.New("answer index out of range")
	// ErrIntegrityViolation indicates a write referencing an unknown player
	// or question; fatal to the current session.
	ErrIntegrityViolation = errors.New("answer references unknown player or question")
	// ErrStoreUnavailable wraps store connectivity and timeout failures.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrSessionNotActive is returned when a session operation is called
	// outside the state that permits it.
	ErrSessionNotActive = errors.New("session not active")
	// ErrNoPendingQuestion is returned when an answer is submitted before a
	// question has been served.
	ErrNoPendingQuestion = errors.New("no question pending")
)
