package lifecycle

import "errors"

var (
	ErrNoActivePoll = errors.New("no active poll")
	ErrAlreadyVoted = errors.New("vote already submitted for this poll")
	ErrKicked       = errors.New("removed from the session")
	ErrNotTeacher   = errors.New("action requires the teacher role")
)
