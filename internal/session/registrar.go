package session

import (
	"context"
	"fmt"
	"log"
	"sync"

	"classpoll/pkg/interfaces"
	"classpoll/pkg/types"
)

// Registrar obtains and persists the session id of a teacher polling run.
// The id is created once per browsing session: a persisted id is returned
// unchanged with no network call, otherwise the backend issues one and it
// is cached for every later lookup.
type Registrar struct {
	backend interfaces.Backend
	cache   interfaces.Cache

	mu        sync.Mutex
	sessionID string
}

// NewRegistrar creates a registrar over the backend and cache.
func NewRegistrar(backend interfaces.Backend, cache interfaces.Cache) *Registrar {
	return &Registrar{backend: backend, cache: cache}
}

// EnsureSession returns the session id for this run, creating one on
// first call. Idempotent: once an id exists, no further network calls are
// made. A backend failure surfaces as ErrSessionUnavailable; dependent
// features degrade to in-memory-only mode.
func (r *Registrar) EnsureSession(ctx context.Context, teacherName string) (string, error) {
	if teacherName == "" {
		return "", ErrEmptyTeacherName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID != "" {
		return r.sessionID, nil
	}

	var cached string
	if r.cache.GetJSON(types.KeySessionID, &cached) && cached != "" {
		r.sessionID = cached
		return cached, nil
	}

	created, err := r.backend.CreateSession(ctx, teacherName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	if err := r.cache.PutJSON(types.KeySessionID, created.ID); err != nil {
		// Memory still holds the id; only durability is lost.
		log.Printf("Failed to persist session id: %v", err)
	}

	r.sessionID = created.ID
	log.Printf("Created session: id=%s teacher=%s", created.ID, teacherName)
	return created.ID, nil
}

// CurrentSession returns the known session id without creating one. Empty
// when no session exists yet.
func (r *Registrar) CurrentSession() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID != "" {
		return r.sessionID
	}
	var cached string
	if r.cache.GetJSON(types.KeySessionID, &cached) {
		r.sessionID = cached
	}
	return r.sessionID
}
