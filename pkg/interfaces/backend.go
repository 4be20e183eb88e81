package interfaces

import (
	"context"

	"classpoll/pkg/types"
)

// Backend is the REST boundary to the authoritative session/poll store.
type Backend interface {
	// CreateSession registers a new polling session for a teacher.
	CreateSession(ctx context.Context, teacherName string) (*types.PollSession, error)

	// FetchPolls returns the backend's poll history for a session.
	FetchPolls(ctx context.Context, sessionID string) ([]types.PollHistoryItem, error)
}
