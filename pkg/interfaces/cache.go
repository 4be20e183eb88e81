package interfaces

// Cache is the persisted per-session key/value store. Values are whole
// JSON documents; writes are whole-value and last-write-wins. A cache in
// degraded mode keeps serving from memory without durability.
type Cache interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) ([]byte, bool)

	// Put stores value under key, replacing any previous value.
	Put(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// GetJSON decodes the value at key into v; false when the key is
	// missing or the stored value does not parse.
	GetJSON(key string, v interface{}) bool

	// PutJSON encodes v and stores it under key.
	PutJSON(key string, v interface{}) error

	// Close flushes pending writes and releases the backing store.
	Close() error
}
