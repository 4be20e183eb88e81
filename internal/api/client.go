package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"classpoll/pkg/interfaces"
	"classpoll/pkg/types"
)

// Client talks to the backend's REST boundary: session creation and the
// authoritative per-session poll list.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ interfaces.Backend = (*Client)(nil)

// NewClient creates a REST client for baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// createSessionRequest is the POST /api/session body.
type createSessionRequest struct {
	TeacherName string `json:"teacherName"`
}

// createSessionResponse wraps the created session.
type createSessionResponse struct {
	Session *types.PollSession `json:"session"`
}

// CreateSession registers a new polling session for a teacher.
func (c *Client) CreateSession(ctx context.Context, teacherName string) (*types.PollSession, error) {
	body, err := json.Marshal(createSessionRequest{TeacherName: teacherName})
	if err != nil {
		return nil, fmt.Errorf("failed to encode session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/session", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("session request returned status %d", resp.StatusCode)
	}

	var decoded createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}
	if decoded.Session == nil || decoded.Session.ID == "" {
		return nil, fmt.Errorf("session response missing session id")
	}

	return decoded.Session, nil
}

// FetchPolls returns the backend's poll history for a session.
func (c *Client) FetchPolls(ctx context.Context, sessionID string) ([]types.PollHistoryItem, error) {
	if sessionID == "" {
		return nil, types.ErrMissingSessionID
	}

	url := fmt.Sprintf("%s/api/session/%s/polls", c.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build polls request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polls request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("polls request returned status %d", resp.StatusCode)
	}

	var polls []types.PollHistoryItem
	if err := json.NewDecoder(resp.Body).Decode(&polls); err != nil {
		return nil, fmt.Errorf("failed to decode polls response: %w", err)
	}

	return polls, nil
}
