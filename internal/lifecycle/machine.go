package lifecycle

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"classpoll/internal/store"
	"classpoll/pkg/interfaces"
	"classpoll/pkg/types"
)

// Phase is the client's position in the poll lifecycle.
type Phase int

const (
	// PhaseIdle: no active poll. Also the state right after a poll ends.
	PhaseIdle Phase = iota
	// PhaseAwaitingJoin: join emitted, confirmation not yet received.
	PhaseAwaitingJoin
	// PhaseActiveNoVote: a poll is live and this client has not voted.
	PhaseActiveNoVote
	// PhaseActiveVoted: a poll is live and the single vote is spent.
	PhaseActiveVoted
	// PhaseKicked: terminal. Reached from any phase, never left.
	PhaseKicked
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingJoin:
		return "awaiting_join"
	case PhaseActiveNoVote:
		return "active"
	case PhaseActiveVoted:
		return "voted"
	case PhaseKicked:
		return "kicked"
	}
	return "unknown"
}

// SessionSource resolves the current session id, which may become known
// only after lifecycle events have already started flowing.
type SessionSource interface {
	CurrentSession() string
}

// Machine tracks the one active poll of this client: its options, the
// vote flag, the displayed results and the advisory countdown. All
// transitions happen on inbound lifecycle events or local actions; events
// arrive serially from the channel's dispatch goroutine.
type Machine struct {
	channel  interfaces.EventChannel
	state    *store.State
	cache    interfaces.Cache
	sessions SessionSource

	mu        sync.Mutex
	phase     Phase
	votedPoll string // id of the poll the vote was spent on

	// Countdown. Re-armed wholesale on every poll:started so a prior
	// poll's timer can never leak into a new one.
	remaining int
	timerStop chan struct{}

	subs []interfaces.Subscription
}

// NewMachine creates the state machine over its collaborators.
func NewMachine(channel interfaces.EventChannel, state *store.State, cache interfaces.Cache, sessions SessionSource) *Machine {
	return &Machine{
		channel:  channel,
		state:    state,
		cache:    cache,
		sessions: sessions,
		phase:    PhaseIdle,
	}
}

// Bind subscribes the machine to its lifecycle events. Call once after
// construction; Teardown releases every handler.
func (m *Machine) Bind() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subs = []interfaces.Subscription{
		m.channel.On(types.EventStudentJoined, m.onJoined),
		m.channel.On(types.EventPollStarted, m.onPollStarted),
		m.channel.On(types.EventPollResults, m.onPollResults),
		m.channel.On(types.EventPollEnded, m.onPollEnded),
		m.channel.On(types.EventUserKicked, m.onKicked),
	}
}

// Teardown deregisters every handler and stops the countdown.
func (m *Machine) Teardown() {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.stopTimerLocked()
	m.mu.Unlock()

	for _, s := range subs {
		s.Off()
	}
}

// Phase returns the current lifecycle phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Remaining returns the advisory countdown in seconds, floored at 0.
// Expiry neither locks voting nor submits anything; ending a poll is the
// teacher's call alone.
func (m *Machine) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining
}

// JoinStudent registers this client as a student participant.
func (m *Machine) JoinStudent(name string) error {
	if err := types.ValidateJoin(name); err != nil {
		return err
	}

	m.mu.Lock()
	if m.phase == PhaseKicked {
		m.mu.Unlock()
		return ErrKicked
	}
	m.phase = PhaseAwaitingJoin
	m.mu.Unlock()

	m.state.SetRole(types.RoleStudent)
	m.state.SetUser(m.channel.ID(), name)
	return m.channel.Emit(types.EventStudentJoin, types.JoinPayload{Name: name})
}

// JoinTeacher registers this client as the teacher participant.
func (m *Machine) JoinTeacher(name string) error {
	if err := types.ValidateJoin(name); err != nil {
		return err
	}

	m.state.SetRole(types.RoleTeacher)
	m.state.SetUser(m.channel.ID(), name)
	return m.channel.Emit(types.EventTeacherJoin, types.JoinPayload{Name: name})
}

// Vote submits the student's answer for the active poll. A no-op unless a
// poll is active and the vote is unspent: for any number of invocations
// exactly one vote event is emitted per poll.
func (m *Machine) Vote(optionID string) error {
	m.mu.Lock()
	if m.phase != PhaseActiveNoVote {
		m.mu.Unlock()
		if m.phaseIs(PhaseActiveVoted) {
			return ErrAlreadyVoted
		}
		return ErrNoActivePoll
	}

	poll := m.state.ActivePoll()
	if poll == nil {
		m.mu.Unlock()
		return ErrNoActivePoll
	}

	vote := types.Vote{PollID: poll.ID, OptionID: optionID}
	if err := types.ValidateVote(&vote); err != nil {
		m.mu.Unlock()
		return err
	}

	// Flip the flag before emitting so a re-entrant call cannot race a
	// second emit; the backend must still reject duplicates by
	// (connection, poll) since the network offers no such guarantee.
	m.phase = PhaseActiveVoted
	m.votedPoll = poll.ID
	m.mu.Unlock()

	return m.channel.Emit(types.EventStudentVote, vote)
}

func (m *Machine) phaseIs(p Phase) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase == p
}

// CreatePoll asks the backend to broadcast a new poll. Teacher only.
// Starting a new poll implicitly supersedes any active one.
func (m *Machine) CreatePoll(question string, options []string, timeLimit int, correct []bool) error {
	if m.state.Role() != types.RoleTeacher {
		return ErrNotTeacher
	}

	payload := types.CreatePollPayload{
		Question:  question,
		Options:   options,
		TimeLimit: timeLimit,
		Correct:   correct,
		SessionID: m.sessions.CurrentSession(),
	}
	if err := types.ValidateCreatePoll(&payload); err != nil {
		return err
	}
	return m.channel.Emit(types.EventCreatePoll, payload)
}

// EndPoll asks the backend to end the active poll. Teacher only. The
// actual transition happens when the poll:ended event comes back.
func (m *Machine) EndPoll() error {
	if m.state.Role() != types.RoleTeacher {
		return ErrNotTeacher
	}
	return m.channel.Emit(types.EventEndPoll, struct{}{})
}

// onJoined unlocks the voting screens. Still idle with respect to polls
// until a poll:started arrives.
func (m *Machine) onJoined(json.RawMessage) {
	m.mu.Lock()
	if m.phase == PhaseKicked {
		m.mu.Unlock()
		return
	}
	if m.phase == PhaseAwaitingJoin {
		m.phase = PhaseIdle
	}
	m.mu.Unlock()

	m.state.SetJoined(true)
	log.Printf("Join confirmed for %s", m.channel.ID())
}

// onPollStarted activates the broadcast poll. A second start while active
// supersedes the previous poll directly, covering a missed end event.
func (m *Machine) onPollStarted(data json.RawMessage) {
	var poll types.Poll
	if err := json.Unmarshal(data, &poll); err != nil || poll.ID == "" {
		log.Printf("Ignoring malformed poll:started payload: %v", err)
		return
	}

	m.mu.Lock()
	if m.phase == PhaseKicked {
		m.mu.Unlock()
		return
	}
	m.phase = PhaseActiveNoVote
	m.votedPoll = ""
	m.armTimerLocked(poll.EffectiveTimeLimit())
	m.mu.Unlock()

	m.state.SetActivePoll(&poll)
	m.state.SetResults(nil)

	if err := m.cache.PutJSON(types.KeyCurrentPoll, &poll); err != nil {
		log.Printf("Failed to persist current poll: %v", err)
	}
	_ = m.cache.Delete(types.KeyCurrentResults)

	log.Printf("Poll started: id=%s options=%d limit=%ds", poll.ID, len(poll.Options), poll.EffectiveTimeLimit())
}

// onPollResults updates the displayed tally in place. Valid in either
// active sub-state; with no active poll there is nothing to attach the
// rows to and the event is dropped.
func (m *Machine) onPollResults(data json.RawMessage) {
	var payload types.ResultsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("Ignoring malformed poll:results payload: %v", err)
		return
	}

	if m.state.ActivePoll() == nil {
		return
	}

	m.state.SetResults(payload.Results)
	if err := m.cache.PutJSON(types.KeyCurrentResults, payload.Results); err != nil {
		log.Printf("Failed to persist current results: %v", err)
	}
}

// onPollEnded snapshots the active poll and its last results into a
// history item, persists it under the session when one is known, and
// resets to idle.
func (m *Machine) onPollEnded(json.RawMessage) {
	poll := m.state.ActivePoll()

	m.mu.Lock()
	if m.phase == PhaseKicked {
		m.mu.Unlock()
		return
	}
	m.phase = PhaseIdle
	m.votedPoll = ""
	m.stopTimerLocked()
	m.mu.Unlock()

	if poll == nil {
		// Nothing was active; a late or duplicate end event.
		return
	}

	item := types.PollHistoryItem{
		ID:       poll.ID,
		Question: poll.Question,
		Options:  poll.Options,
		Results:  m.state.Results(),
		EndedAt:  time.Now().UnixMilli(),
	}
	m.state.AppendHistory(item)

	if sid := m.sessions.CurrentSession(); sid != "" {
		key := types.HistoryKey(sid)
		var persisted []types.PollHistoryItem
		m.cache.GetJSON(key, &persisted)
		persisted = append(persisted, item)
		if err := m.cache.PutJSON(key, persisted); err != nil {
			log.Printf("Failed to persist poll history: %v", err)
		}
	}

	m.state.SetActivePoll(nil)
	m.state.SetResults(nil)
	_ = m.cache.Delete(types.KeyCurrentPoll)
	_ = m.cache.Delete(types.KeyCurrentResults)

	log.Printf("Poll ended: id=%s", poll.ID)
}

// onKicked is a hard interrupt: terminal from any phase. Handlers are
// released so later poll events cannot revert the state.
func (m *Machine) onKicked(json.RawMessage) {
	m.mu.Lock()
	if m.phase == PhaseKicked {
		m.mu.Unlock()
		return
	}
	m.phase = PhaseKicked
	m.stopTimerLocked()
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()

	m.state.SetActivePoll(nil)
	m.state.SetResults(nil)
	if err := m.cache.PutJSON(types.KeyKicked, true); err != nil {
		log.Printf("Failed to persist kicked marker: %v", err)
	}

	for _, s := range subs {
		s.Off()
	}
	log.Printf("Removed from session by the teacher")
}

// armTimerLocked restarts the 1 Hz countdown at seconds. Caller holds mu.
func (m *Machine) armTimerLocked(seconds int) {
	m.stopTimerLocked()
	m.remaining = seconds

	stop := make(chan struct{})
	m.timerStop = stop

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.mu.Lock()
				if m.timerStop != stop {
					m.mu.Unlock()
					return
				}
				if m.remaining > 0 {
					m.remaining--
				}
				done := m.remaining == 0
				m.mu.Unlock()
				if done {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

// stopTimerLocked halts the countdown. Caller holds mu.
func (m *Machine) stopTimerLocked() {
	if m.timerStop != nil {
		close(m.timerStop)
		m.timerStop = nil
	}
	m.remaining = 0
}
