package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const requestTimeout = 15 * time.Second

// Client is a thin typed wrapper over the room REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a REST client rooted at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// StatusError is a non-2xx REST response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api status %d", e.Status)
}

// CreateRoom creates a new room.
func (c *Client) CreateRoom(ctx context.Context, req CreateRoomRequest) (*CreateRoomResponse, error) {
	var resp CreateRoomResponse
	if err := c.do(ctx, http.MethodPost, "/rooms", req, &resp); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return &resp, nil
}

// GetRoom fetches room metadata.
func (c *Client) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	var resp Room
	if err := c.do(ctx, http.MethodGet, "/rooms/"+roomID, nil, &resp); err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return &resp, nil
}

// JoinRoom performs the REST join, yielding signaling credentials and the
// optimistic participant list.
func (c *Client) JoinRoom(ctx context.Context, roomID string, req JoinRequest) (*JoinResponse, error) {
	var resp JoinResponse
	if err := c.do(ctx, http.MethodPost, "/rooms/"+roomID+"/join", req, &resp); err != nil {
		return nil, fmt.Errorf("join room %s: %w", roomID, err)
	}
	return &resp, nil
}

// LeaveRoom tells the server the user is gone. Best-effort on the caller's
// side; errors are reported, not fatal.
func (c *Client) LeaveRoom(ctx context.Context, roomID, userID string) error {
	if err := c.do(ctx, http.MethodPost, "/rooms/"+roomID+"/leave",
		map[string]string{"user_id": userID}, nil); err != nil {
		return fmt.Errorf("leave room %s: %w", roomID, err)
	}
	return nil
}

// GetMediaStatus reports media plane availability.
func (c *Client) GetMediaStatus(ctx context.Context) (*MediaStatus, error) {
	var resp MediaStatus
	if err := c.do(ctx, http.MethodGet, "/media/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("media status: %w", err)
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(data, &apiErr)
		return &StatusError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
