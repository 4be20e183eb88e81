package roster

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"classpoll/pkg/interfaces"
	"classpoll/pkg/types"
)

// SessionSource resolves the current session id for transcript scoping.
type SessionSource interface {
	CurrentSession() string
}

// ClientState exposes the slice of shared state the channel consults:
// the chat toggle and the role this client joined under. When chat is
// disabled the channel neither accepts nor records chat traffic but
// keeps tracking the roster.
type ClientState interface {
	ChatEnabled() bool
	Role() string
}

// Channel maintains the live participant list and the chat transcript,
// and carries the teacher's kick moderation command. The roster is
// replaced wholesale on every participants:update broadcast; the last
// broadcast wins.
type Channel struct {
	channel  interfaces.EventChannel
	cache    interfaces.Cache
	sessions SessionSource
	state    ClientState

	mu           sync.RWMutex
	participants []types.Participant
	messages     []types.ChatMessage

	subs []interfaces.Subscription
}

// NewChannel creates the roster/messaging channel over its collaborators.
func NewChannel(channel interfaces.EventChannel, cache interfaces.Cache, sessions SessionSource, state ClientState) *Channel {
	return &Channel{
		channel:  channel,
		cache:    cache,
		sessions: sessions,
		state:    state,
	}
}

// Bind hydrates the transcript from the cache and subscribes to roster
// and chat events. Teardown releases the handlers.
func (c *Channel) Bind() {
	if sid := c.sessions.CurrentSession(); sid != "" {
		var saved []types.ChatMessage
		if c.cache.GetJSON(types.ChatKey(sid), &saved) {
			c.mu.Lock()
			c.messages = saved
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = []interfaces.Subscription{
		c.channel.On(types.EventParticipants, c.onParticipants),
		c.channel.On(types.EventChatMessage, c.onChatMessage),
	}
}

// Teardown deregisters every handler.
func (c *Channel) Teardown() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, s := range subs {
		s.Off()
	}
}

// onParticipants replaces the roster atomically. No incremental deltas:
// consumers always see a full, freshly sorted list.
func (c *Channel) onParticipants(data json.RawMessage) {
	var list []types.Participant
	if err := json.Unmarshal(data, &list); err != nil {
		log.Printf("Ignoring malformed participants:update payload: %v", err)
		return
	}

	sortParticipants(list)

	c.mu.Lock()
	c.participants = list
	c.mu.Unlock()
}

// sortParticipants orders teacher entries first, keeping arrival order
// within each group.
func sortParticipants(list []types.Participant) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Role == types.RoleTeacher && list[j].Role != types.RoleTeacher
	})
}

// onChatMessage appends one line to the transcript and persists it under
// the session. Dropped while chat is disabled.
func (c *Channel) onChatMessage(data json.RawMessage) {
	if !c.state.ChatEnabled() {
		return
	}

	var msg types.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Ignoring malformed chat:message payload: %v", err)
		return
	}
	if msg.At == 0 {
		msg.At = time.Now().UnixMilli()
	}

	c.mu.Lock()
	c.messages = append(c.messages, msg)
	transcript := append([]types.ChatMessage(nil), c.messages...)
	c.mu.Unlock()

	if sid := c.sessions.CurrentSession(); sid != "" {
		if err := c.cache.PutJSON(types.ChatKey(sid), transcript); err != nil {
			log.Printf("Failed to persist chat transcript: %v", err)
		}
	}
}

// Send broadcasts a chat line. A no-op error when chat is disabled or the
// line is empty; the own copy arrives back through the broadcast.
func (c *Channel) Send(text string) error {
	if !c.state.ChatEnabled() {
		return ErrChatDisabled
	}
	if text == "" {
		return ErrEmptyMessage
	}
	return c.channel.Emit(types.EventChatMessage, types.ChatSendPayload{Message: text})
}

// Kick emits the moderation command for a participant. Teacher-only;
// fire-and-forget: the effect shows up as the target's own kicked
// transition, there is no acknowledgement to wait for.
func (c *Channel) Kick(socketID string) error {
	if c.state.Role() != types.RoleTeacher {
		return ErrNotTeacher
	}
	if socketID == "" {
		return ErrMissingTarget
	}
	return c.channel.Emit(types.EventKickStudent, types.KickPayload{SocketID: socketID})
}

// Participants returns a copy of the current roster, teachers first.
func (c *Channel) Participants() []types.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]types.Participant(nil), c.participants...)
}

// Messages returns a copy of the transcript in arrival order.
func (c *Channel) Messages() []types.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]types.ChatMessage(nil), c.messages...)
}

// IsMine reports whether a transcript line was sent over the live
// connection. Identity is the connection id, so lines from before a
// reconnect stop counting as self-sent.
func (c *Channel) IsMine(msg types.ChatMessage) bool {
	return msg.ID == c.channel.ID()
}
