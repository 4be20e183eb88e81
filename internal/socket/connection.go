package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"classpoll/pkg/interfaces"
	"classpoll/pkg/types"
)

// connectionIDHeader is set by the server on the upgrade response. When
// absent the client falls back to a self-generated id; the server echoes
// whatever id the connection registered under.
const connectionIDHeader = "X-Connection-Id"

const (
	writeBuffer  = 100
	writeTimeout = 5 * time.Second
)

// Keepalive: the writer pings every pingInterval, and any data, ping or
// pong frame counts as liveness, pushing the read deadline forward. An
// idle-but-healthy connection must never hit the deadline.
var (
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Connection is the single persistent event channel of the client. Events
// are JSON envelopes of {event, data}. Inbound events dispatch to
// subscribers serially in arrival order; outbound writes are serialized
// through one writer goroutine.
type Connection struct {
	conn    *websocket.Conn
	id      string
	writeCh chan []byte
	ctx     context.Context
	cancel  context.CancelFunc

	closeOnce sync.Once

	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]interfaces.EventHandler
}

var _ interfaces.EventChannel = (*Connection)(nil)

// Dial connects to the event channel endpoint at serverURL (http or ws
// scheme) under the /ws path.
func Dial(ctx context.Context, serverURL string) (*Connection, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	id := ""
	if resp != nil {
		id = resp.Header.Get(connectionIDHeader)
	}
	if id == "" {
		id = uuid.New().String()
	}

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeTimeout))
	})

	cctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:    conn,
		id:      id,
		writeCh: make(chan []byte, writeBuffer),
		ctx:     cctx,
		cancel:  cancel,
		subs:    make(map[string]map[int]interfaces.EventHandler),
	}

	go c.writeLoop()
	go c.readLoop()

	log.Printf("Connected to %s as %s", u.Host, c.id)
	return c, nil
}

// ID returns the transport-assigned connection id.
func (c *Connection) ID() string {
	return c.id
}

// Emit sends a named event with a JSON payload. Thread-safe; the write is
// queued to the single writer goroutine.
func (c *Connection) Emit(event string, payload interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		raw = data
	}

	data, err := json.Marshal(types.Event{Name: event, Data: raw})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// On registers a handler for a named event. The returned subscription
// deregisters the handler exactly once; handlers left registered at Close
// are dropped with the connection.
func (c *Connection) On(event string, handler interfaces.EventHandler) interfaces.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	if c.subs[event] == nil {
		c.subs[event] = make(map[int]interfaces.EventHandler)
	}
	c.subs[event][id] = handler

	return &subscription{conn: c, event: event, id: id}
}

// subscription is the deregistration handle returned by On.
type subscription struct {
	conn  *Connection
	event string
	id    int
	once  sync.Once
}

func (s *subscription) Off() {
	s.once.Do(func() {
		s.conn.mu.Lock()
		defer s.conn.mu.Unlock()

		if handlers := s.conn.subs[s.event]; handlers != nil {
			delete(handlers, s.id)
			if len(handlers) == 0 {
				delete(s.conn.subs, s.event)
			}
		}
	})
}

// writeLoop serializes all outbound frames through one goroutine and
// pings the server on an interval to keep the idle connection alive.
func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// readLoop decodes inbound envelopes and dispatches them. One goroutine,
// so handlers observe events in arrival order: this is the client's
// single logical thread of state mutation.
func (c *Connection) readLoop() {
	defer c.cancel()

	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		var event types.Event
		if err := c.conn.ReadJSON(&event); err != nil {
			select {
			case <-c.ctx.Done():
			default:
				log.Printf("Event channel read error: %v", err)
			}
			return
		}

		c.dispatch(&event)
	}
}

// dispatch invokes the handlers registered for the event. The subscriber
// snapshot is taken under the read lock so a handler may deregister
// itself or others mid-dispatch.
func (c *Connection) dispatch(event *types.Event) {
	c.mu.RLock()
	handlers := make([]interfaces.EventHandler, 0, len(c.subs[event.Name]))
	for _, h := range c.subs[event.Name] {
		handlers = append(handlers, h)
	}
	c.mu.RUnlock()

	for _, h := range handlers {
		h(event.Data)
	}
}

// Close tears the connection down and drops all subscriptions.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()

		c.mu.Lock()
		c.subs = make(map[string]map[int]interfaces.EventHandler)
		c.mu.Unlock()
	})
	return err
}
