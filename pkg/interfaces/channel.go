package interfaces

import "encoding/json"

// EventHandler receives the raw payload of one inbound event. Handlers on
// a single channel are invoked serially in arrival order.
type EventHandler func(data json.RawMessage)

// Subscription is the handle returned by EventChannel.On. Off deregisters
// the handler; it is safe to call more than once.
type Subscription interface {
	Off()
}

// EventChannel is the single persistent bidirectional channel shared by
// the whole client. Identity is the transport-assigned connection id,
// stable for the connection's lifetime.
type EventChannel interface {
	// ID returns the connection id assigned at handshake.
	ID() string

	// Emit sends a named event with a JSON payload (thread-safe).
	Emit(event string, payload interface{}) error

	// On registers a handler for a named event and returns its
	// subscription handle.
	On(event string, handler EventHandler) Subscription

	// Close tears the connection down and deregisters all handlers.
	Close() error
}
