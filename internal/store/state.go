package store

import (
	"sync"

	"classpoll/pkg/types"
)

// State is the process-wide store of "current" values: role, identity,
// active poll, results, chat flag, join flag and the in-memory poll
// history. It is created once at startup and lives for the whole run.
// Mutation goes through narrow setters; each field has a single writing
// component by convention, everyone may read.
type State struct {
	mu          sync.RWMutex
	role        string
	userID      string
	name        string
	activePoll  *types.Poll
	results     []types.ResultRow
	chatEnabled bool
	joined      bool
	history     []types.PollHistoryItem
}

// New returns an empty state: no role, no identity, no active poll, chat
// disabled, empty history.
func New() *State {
	return &State{}
}

// SetRole records the user's initial role choice. Set once; re-deriving
// role mid-session is not supported.
func (s *State) SetRole(role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.role = role
}

// Role returns the chosen role, or "" before the choice.
func (s *State) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// SetUser records the connection identity.
func (s *State) SetUser(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = id
	s.name = name
}

// User returns the connection id and display name.
func (s *State) User() (id, name string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.name
}

// SetActivePoll replaces the active poll. nil clears it.
func (s *State) SetActivePoll(p *types.Poll) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activePoll = p
}

// ActivePoll returns a copy of the active poll, or nil when idle.
func (s *State) ActivePoll() *types.Poll {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activePoll == nil {
		return nil
	}
	poll := *s.activePoll
	poll.Options = append([]types.PollOption(nil), s.activePoll.Options...)
	return &poll
}

// SetResults replaces the displayed result rows.
func (s *State) SetResults(rows []types.ResultRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append([]types.ResultRow(nil), rows...)
}

// Results returns a copy of the current result rows.
func (s *State) Results() []types.ResultRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.ResultRow(nil), s.results...)
}

// SetChatEnabled sets the process-wide chat gate. Set once at startup.
func (s *State) SetChatEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatEnabled = enabled
}

// ChatEnabled reports whether the messaging channel is active.
func (s *State) ChatEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatEnabled
}

// SetJoined records the inbound join confirmation.
func (s *State) SetJoined(joined bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined = joined
}

// Joined reports whether the join handshake completed.
func (s *State) Joined() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.joined
}

// AppendHistory appends one ended poll to the in-memory history.
func (s *State) AppendHistory(item types.PollHistoryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, item)
}

// History returns a copy of the in-memory poll history, oldest first.
func (s *State) History() []types.PollHistoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.PollHistoryItem(nil), s.history...)
}

// ClearHistory drops the in-memory poll history.
func (s *State) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}
