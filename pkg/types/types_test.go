package types

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPoll_EffectiveTimeLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"explicit limit", 30, 30},
		{"missing limit defaults", 0, DefaultTimeLimit},
		{"negative limit defaults", -5, DefaultTimeLimit},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &Poll{TimeLimit: tc.limit}
			if got := p.EffectiveTimeLimit(); got != tc.want {
				t.Errorf("EffectiveTimeLimit() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestSessionScopedKeys(t *testing.T) {
	if got := HistoryKey("sess-1"); got != "history:sess-1" {
		t.Errorf("HistoryKey = %q", got)
	}
	if got := ChatKey("sess-1"); got != "chat:sess-1" {
		t.Errorf("ChatKey = %q", got)
	}
}

func TestEvent_EnvelopeRoundTrip(t *testing.T) {
	data, err := json.Marshal(Event{Name: EventPollStarted, Data: json.RawMessage(`{"id":"p1"}`)})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Name != EventPollStarted {
		t.Errorf("event name = %q", decoded.Name)
	}

	var poll Poll
	if err := json.Unmarshal(decoded.Data, &poll); err != nil {
		t.Fatalf("payload unmarshal failed: %v", err)
	}
	if poll.ID != "p1" {
		t.Errorf("payload id = %q", poll.ID)
	}
}

func TestIsValidRole(t *testing.T) {
	if !IsValidRole(RoleTeacher) || !IsValidRole(RoleStudent) {
		t.Error("wire roles rejected")
	}
	if IsValidRole("") || IsValidRole("admin") {
		t.Error("unknown role accepted")
	}
}

func TestValidateCreatePoll(t *testing.T) {
	valid := func() *CreatePollPayload {
		return &CreatePollPayload{
			Question:  "What is 2+2?",
			Options:   []string{"3", "4"},
			TimeLimit: 60,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*CreatePollPayload)
		wantErr error
	}{
		{"valid", func(p *CreatePollPayload) {}, nil},
		{"empty question", func(p *CreatePollPayload) { p.Question = "" }, ErrInvalidQuestion},
		{"one option", func(p *CreatePollPayload) { p.Options = []string{"only"} }, ErrTooFewOptions},
		{"blank option", func(p *CreatePollPayload) { p.Options = []string{"a", ""} }, ErrTooFewOptions},
		{"zero limit", func(p *CreatePollPayload) { p.TimeLimit = 0 }, ErrInvalidTimeLimit},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload := valid()
			tc.mutate(payload)
			err := ValidateCreatePoll(payload)
			if tc.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateVote(t *testing.T) {
	if err := ValidateVote(&Vote{PollID: "p1", OptionID: "a"}); err != nil {
		t.Errorf("valid vote rejected: %v", err)
	}
	if err := ValidateVote(&Vote{OptionID: "a"}); err != ErrMissingPollID {
		t.Errorf("error = %v, want ErrMissingPollID", err)
	}
	if err := ValidateVote(&Vote{PollID: "p1"}); err != ErrMissingOptionID {
		t.Errorf("error = %v, want ErrMissingOptionID", err)
	}
}
