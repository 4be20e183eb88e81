package roster

import "errors"

var (
	ErrChatDisabled  = errors.New("chat is disabled")
	ErrEmptyMessage  = errors.New("chat message cannot be empty")
	ErrMissingTarget = errors.New("kick target connection id cannot be empty")
	ErrNotTeacher    = errors.New("only the teacher can remove participants")
)
