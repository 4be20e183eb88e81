package types

import (
	"encoding/json"
	"time"
)

// Participant roles as they appear on the wire and in the roster.
const (
	RoleTeacher = "TEACHER"
	RoleStudent = "STUDENT"
)

// Named events carried over the bidirectional channel. Outbound names are
// prefixed with the sender role, inbound names with the subsystem.
const (
	EventStudentJoin   = "student:join"
	EventTeacherJoin   = "teacher:join"
	EventCreatePoll    = "teacher:createPoll"
	EventEndPoll       = "teacher:endPoll"
	EventKickStudent   = "teacher:kickStudent"
	EventStudentVote   = "student:vote"
	EventStudentJoined = "student:joined"
	EventPollStarted   = "poll:started"
	EventPollResults   = "poll:results"
	EventPollEnded     = "poll:ended"
	EventUserKicked    = "user:kicked"
	EventParticipants  = "participants:update"
	EventChatMessage   = "chat:message"
)

// Keys of the persisted per-session cache. History and chat entries are
// scoped by session id via HistoryKey and ChatKey.
const (
	KeySessionID      = "sessionId"
	KeyCurrentPoll    = "currentPoll"
	KeyCurrentResults = "currentResults"
	KeyKicked         = "kicked"
)

// HistoryKey returns the cache key holding the persisted poll history for
// a session.
func HistoryKey(sessionID string) string {
	return "history:" + sessionID
}

// ChatKey returns the cache key holding the persisted chat transcript for
// a session.
func ChatKey(sessionID string) string {
	return "chat:" + sessionID
}

// Event is the wire envelope of the channel: a named event plus its raw
// JSON payload. Data stays undecoded so each subscriber unmarshals only
// the events it handles.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// PollSession groups the polls of one teacher run. Created once via the
// session endpoint and never mutated afterwards.
type PollSession struct {
	ID          string    `json:"id"`
	TeacherName string    `json:"teacherName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PollOption is one selectable answer of a poll.
type PollOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Poll is one question-with-options unit. Immutable once broadcast; at
// most one poll is active per session at a time. TimeLimit is seconds and
// advisory only.
type Poll struct {
	ID        string       `json:"id"`
	Question  string       `json:"question"`
	Options   []PollOption `json:"options"`
	TimeLimit int          `json:"timeLimit,omitempty"`
}

// DefaultTimeLimit applies when a poll arrives without a time limit.
const DefaultTimeLimit = 15

// EffectiveTimeLimit returns the poll's countdown seconds, defaulting when
// the broadcast omitted the limit.
func (p *Poll) EffectiveTimeLimit() int {
	if p.TimeLimit <= 0 {
		return DefaultTimeLimit
	}
	return p.TimeLimit
}

// Vote is a student's single answer to a poll. Voter identity is the
// connection id the transport assigned, so it is not embedded here.
type Vote struct {
	PollID   string `json:"pollId"`
	OptionID string `json:"optionId"`
}

// RecordedVote is a vote as it appears inside a backend history item.
type RecordedVote struct {
	UserID   string `json:"userId"`
	OptionID string `json:"optionId"`
}

// ResultRow is the live tally for one option. Percent is rounded per row,
// so the sum over all rows may deviate from 100.
type ResultRow struct {
	ID      string `json:"id"`
	Text    string `json:"text,omitempty"`
	Count   int    `json:"count,omitempty"`
	Percent int    `json:"percent"`
}

// PollHistoryItem is an ended poll as shown in the history view. Items
// reconstructed client-side carry Results; items fetched from the backend
// may instead carry raw Votes. Uniqueness key is ID.
type PollHistoryItem struct {
	ID       string         `json:"id"`
	Question string         `json:"question"`
	Options  []PollOption   `json:"options"`
	Votes    []RecordedVote `json:"votes,omitempty"`
	Results  []ResultRow    `json:"results,omitempty"`
	EndedAt  int64          `json:"endedAt,omitempty"`
}

// Participant is one entry of the live roster. It exists only as a
// projection of the latest participants:update broadcast.
type Participant struct {
	SocketID string `json:"socketId"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
}

// ChatMessage is one chat line. ID is the sender's connection id; a
// reconnect therefore changes which historical lines count as self-sent.
type ChatMessage struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
	At      int64  `json:"at"`
}

// Outbound event payloads.

// JoinPayload registers a participant under a display name.
type JoinPayload struct {
	Name string `json:"name"`
}

// CreatePollPayload requests a new poll broadcast. Correct marks which
// options the teacher flagged as right answers; the client never scores
// against it, the backend stores it with the poll.
type CreatePollPayload struct {
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	TimeLimit int      `json:"timeLimit"`
	Correct   []bool   `json:"correct,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
}

// KickPayload addresses a moderation command by connection id.
type KickPayload struct {
	SocketID string `json:"socketId"`
}

// ChatSendPayload carries an outbound chat line; the backend attributes
// sender id and name.
type ChatSendPayload struct {
	Message string `json:"message"`
}

// ResultsPayload wraps the inbound poll:results rows.
type ResultsPayload struct {
	Results []ResultRow `json:"results"`
}
