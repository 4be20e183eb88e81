package types

import "fmt"

// IsValidRole reports whether role is one of the two wire roles.
func IsValidRole(role string) bool {
	return role == RoleTeacher || role == RoleStudent
}

// ValidateJoin checks a join payload before it is emitted.
func ValidateJoin(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	return nil
}

// ValidateCreatePoll checks a poll request before it is emitted. The
// backend validates again; this keeps obviously broken requests off the
// wire.
func ValidateCreatePoll(p *CreatePollPayload) error {
	if p.Question == "" || len(p.Question) > 100 {
		return ErrInvalidQuestion
	}
	if len(p.Options) < 2 {
		return ErrTooFewOptions
	}
	for i, opt := range p.Options {
		if opt == "" {
			return fmt.Errorf("%w: option %d is empty", ErrTooFewOptions, i)
		}
	}
	if p.TimeLimit <= 0 {
		return ErrInvalidTimeLimit
	}
	return nil
}

// ValidateVote checks a vote payload before it is emitted.
func ValidateVote(v *Vote) error {
	if v.PollID == "" {
		return ErrMissingPollID
	}
	if v.OptionID == "" {
		return ErrMissingOptionID
	}
	return nil
}
