package types

import "errors"

var (
	ErrInvalidRole      = errors.New("role must be TEACHER or STUDENT")
	ErrEmptyName        = errors.New("participant name cannot be empty")
	ErrInvalidQuestion  = errors.New("poll question must be 1-100 characters")
	ErrTooFewOptions    = errors.New("poll needs at least two options")
	ErrInvalidTimeLimit = errors.New("poll time limit must be positive")
	ErrMissingPollID    = errors.New("poll id cannot be empty")
	ErrMissingOptionID  = errors.New("option id cannot be empty")
	ErrMissingSessionID = errors.New("session id cannot be empty")
)
