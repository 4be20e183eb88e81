package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"classpoll/pkg/interfaces"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Store is the persisted per-session key/value cache. Reads are served
// from an in-memory map loaded at open; writes go through to SQLite via a
// single-writer goroutine so concurrent components never contend on the
// database. Whole-value, last-write-wins.
//
// When the database cannot be opened the store degrades to memory-only:
// every operation keeps working, nothing survives a restart.
type Store struct {
	db           *sql.DB
	values       map[string][]byte
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	degraded     bool
	mu           sync.RWMutex
}

var _ interfaces.Cache = (*Store)(nil)

// writeOperation is one queued database write.
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// Open opens or creates the cache database at path. A failure to open or
// migrate does not fail the client: the returned store runs memory-only
// and the error is logged.
func Open(path string) *Store {
	s := &Store{
		values:       make(map[string][]byte),
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		log.Printf("Cache degraded to memory-only: %v", err)
		s.degraded = true
		return s
	}

	if _, err := db.Exec(schema); err != nil {
		log.Printf("Cache degraded to memory-only: schema: %v", err)
		_ = db.Close()
		s.degraded = true
		return s
	}

	s.db = db
	if err := s.loadAll(); err != nil {
		log.Printf("Cache load failed, starting empty: %v", err)
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s
}

// loadAll hydrates the in-memory map from the kv table.
func (s *Store) loadAll() error {
	rows, err := s.db.Query(`SELECT key, value FROM kv`)
	if err != nil {
		return fmt.Errorf("failed to load cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("failed to scan cache row: %w", err)
		}
		s.values[key] = []byte(value)
	}
	return rows.Err()
}

// writeLoop processes all database writes in a single goroutine. A failed
// write is retried once after a short delay, then logged and dropped; the
// in-memory value already holds the latest state.
func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeChannel:
			err := op.operation(s.db)
			if err != nil {
				log.Printf("Cache write failed, retrying: %v", err)
				time.Sleep(500 * time.Millisecond)
				err = op.operation(s.db)
				if err != nil {
					log.Printf("Cache write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-s.shutdown:
			// Drain writes queued before shutdown so callers unblock.
			for {
				select {
				case op := <-s.writeChannel:
					op.result <- op.operation(s.db)
				default:
					return
				}
			}
		}
	}
}

// executeWrite queues a write and waits for it. In degraded mode there is
// nothing to write and the memory update already happened.
func (s *Store) executeWrite(operation func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed || s.degraded {
		s.mu.RUnlock()
		return nil
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writeChannel <- writeOperation{operation: operation, result: result}:
		// The op may have been enqueued after the drain loop exited;
		// shutdown unblocks the caller either way.
		select {
		case err := <-result:
			return err
		case <-s.shutdown:
			return nil
		}
	case <-s.shutdown:
		return nil
	}
}

// Get returns the stored value and whether the key exists.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	return value, ok
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(key string, value []byte) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()

	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT INTO kv (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, string(value))
		return err
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()

	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.Exec(`DELETE FROM kv WHERE key = ?`, key)
		return err
	})
}

// GetJSON decodes the value at key into v. Returns false when the key is
// missing or the stored value does not parse.
func (s *Store) GetJSON(key string, v interface{}) bool {
	data, ok := s.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("Cache entry %q is not valid JSON, ignoring: %v", key, err)
		return false
	}
	return true
}

// PutJSON encodes v and stores it under key.
func (s *Store) PutJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache value %q: %w", key, err)
	}
	return s.Put(key, data)
}

// Degraded reports whether the store is running without durability.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// Close flushes pending writes and releases the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	degraded := s.degraded
	s.mu.Unlock()

	close(s.shutdown)
	if degraded {
		return nil
	}
	s.wg.Wait()
	return s.db.Close()
}
