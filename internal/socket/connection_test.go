package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"classpoll/pkg/types"
)

// testServer is a minimal event-channel endpoint: it assigns a
// connection id on upgrade, records inbound envelopes and can push
// events back to the client.
type testServer struct {
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conn     *websocket.Conn
	received []types.Event
	ready    chan struct{}
	pongs    chan string
}

func newTestServer() *testServer {
	return &testServer{ready: make(chan struct{}), pongs: make(chan string, 8)}
}

func (s *testServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	header := http.Header{}
	header.Set(connectionIDHeader, "conn-test-1")

	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		return
	}
	conn.SetPongHandler(func(appData string) error {
		select {
		case s.pongs <- appData:
		default:
		}
		return nil
	})

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	close(s.ready)

	for {
		var event types.Event
		if err := conn.ReadJSON(&event); err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, event)
		s.mu.Unlock()
	}
}

func (s *testServer) push(t *testing.T, event string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to encode payload: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(types.Event{Name: event, Data: data}); err != nil {
		t.Fatalf("failed to push event: %v", err)
	}
}

func (s *testServer) receivedOf(event string) []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []types.Event
	for _, e := range s.received {
		if e.Name == event {
			matched = append(matched, e)
		}
	}
	return matched
}

func dialTestServer(t *testing.T) (*Connection, *testServer) {
	t.Helper()
	server := newTestServer()
	httpServer := httptest.NewServer(server)
	t.Cleanup(httpServer.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, httpServer.URL)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	select {
	case <-server.ready:
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw the connection")
	}
	return conn, server
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestConnection_IDFromHandshake(t *testing.T) {
	conn, _ := dialTestServer(t)

	if conn.ID() != "conn-test-1" {
		t.Errorf("expected handshake id, got %q", conn.ID())
	}
}

func TestConnection_EmitReachesServer(t *testing.T) {
	conn, server := dialTestServer(t)

	if err := conn.Emit(types.EventStudentJoin, types.JoinPayload{Name: "alice"}); err != nil {
		t.Fatalf("emit failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return len(server.receivedOf(types.EventStudentJoin)) == 1
	})

	event := server.receivedOf(types.EventStudentJoin)[0]
	var payload types.JoinPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.Name != "alice" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestConnection_DispatchInArrivalOrder(t *testing.T) {
	conn, server := dialTestServer(t)

	var mu sync.Mutex
	var order []string
	conn.On(types.EventPollStarted, func(data json.RawMessage) {
		var poll types.Poll
		_ = json.Unmarshal(data, &poll)
		mu.Lock()
		order = append(order, poll.ID)
		mu.Unlock()
	})

	for _, id := range []string{"p1", "p2", "p3"} {
		server.push(t, types.EventPollStarted, types.Poll{ID: id})
	}

	waitFor(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	for i, want := range []string{"p1", "p2", "p3"} {
		if order[i] != want {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want)
		}
	}
}

func TestConnection_SubscriptionOff(t *testing.T) {
	conn, server := dialTestServer(t)

	var mu sync.Mutex
	var count int
	sub := conn.On(types.EventPollEnded, func(json.RawMessage) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	server.push(t, types.EventPollEnded, struct{}{})
	waitFor(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	})

	sub.Off()
	sub.Off() // repeated deregistration is safe

	// Use a second event as a barrier: when it arrives, the first
	// subscription would have fired too if it were still registered.
	barrier := make(chan struct{})
	conn.On(types.EventPollStarted, func(json.RawMessage) { close(barrier) })

	server.push(t, types.EventPollEnded, struct{}{})
	server.push(t, types.EventPollStarted, types.Poll{ID: "p1"})

	select {
	case <-barrier:
	case <-time.After(5 * time.Second):
		t.Fatal("barrier event never arrived")
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("handler fired after Off: count = %d", count)
	}
}

func TestConnection_SurvivesIdleBeyondReadTimeout(t *testing.T) {
	oldRead, oldPing := readTimeout, pingInterval
	readTimeout, pingInterval = 150*time.Millisecond, 50*time.Millisecond
	t.Cleanup(func() { readTimeout, pingInterval = oldRead, oldPing })

	conn, server := dialTestServer(t)

	received := make(chan struct{})
	conn.On(types.EventPollStarted, func(json.RawMessage) { close(received) })

	// No data frames for several read-timeout windows; the keepalive
	// pings must carry the connection through.
	time.Sleep(600 * time.Millisecond)

	server.push(t, types.EventPollStarted, types.Poll{ID: "p1"})
	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("connection went deaf after idling past the read timeout")
	}
}

func TestConnection_AnswersServerPing(t *testing.T) {
	conn, server := dialTestServer(t)
	defer conn.Close()

	server.mu.Lock()
	err := server.conn.WriteControl(websocket.PingMessage, []byte("ka"), time.Now().Add(time.Second))
	server.mu.Unlock()
	if err != nil {
		t.Fatalf("server ping failed: %v", err)
	}

	select {
	case data := <-server.pongs:
		if data != "ka" {
			t.Errorf("pong payload = %q, want %q", data, "ka")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("client never answered the server ping")
	}
}

func TestConnection_EmitAfterClose(t *testing.T) {
	conn, _ := dialTestServer(t)

	if err := conn.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := conn.Emit(types.EventEndPoll, struct{}{}); err != ErrConnectionClosed {
		t.Errorf("expected ErrConnectionClosed, got %v", err)
	}
	// Repeated close is a no-op.
	if err := conn.Close(); err != nil {
		t.Errorf("second close errored: %v", err)
	}
}
