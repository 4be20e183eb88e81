package session

import "errors"

var (
	ErrSessionUnavailable = errors.New("session unavailable")
	ErrEmptyTeacherName   = errors.New("teacher name cannot be empty")
)
