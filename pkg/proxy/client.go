// Package proxy is the HTTP client for the camera proxy server. It covers the
// session, recording and video endpoints; the websocket preview lives in
// pkg/stream.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Error is a non-2xx response from the proxy server. Detail carries the
// server's own message and is shown to the user verbatim.
type Error struct {
	StatusCode int
	Detail     string `json:"detail"`
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return http.StatusText(e.StatusCode)
}

// Client talks to one camera proxy server.
//
// No request timeout is applied: the contract has no client-side deadlines, a
// hung call blocks only its own caller. Use the context to cancel.
type Client struct {
	BaseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the proxy server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// OpenSession asks the server to bind url to a new proxy session.
func (c *Client) OpenSession(ctx context.Context, sourceURL string) (*Session, error) {
	var session Session
	err := c.post(ctx, "/session/open", map[string]string{"url": sourceURL}, &session)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return &session, nil
}

// CloseSession tears down a proxy session. The server treats an unknown
// session id as already closed.
func (c *Client) CloseSession(ctx context.Context, sessionID string) error {
	if err := c.post(ctx, "/session/close", map[string]string{"session_id": sessionID}, nil); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// ListSessions returns all sessions the server currently hosts.
func (c *Client) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	var out struct {
		Sessions []SessionInfo `json:"sessions"`
	}
	if err := c.get(ctx, "/session/list", &out); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out.Sessions, nil
}

// StartRecording starts a capped-duration capture on the session. The server
// stops it on its own once durationSeconds have elapsed.
func (c *Client) StartRecording(ctx context.Context, sessionID string, durationSeconds int) error {
	body := map[string]any{
		"session_id":       sessionID,
		"duration_seconds": durationSeconds,
	}
	if err := c.post(ctx, "/record/start", body, nil); err != nil {
		return fmt.Errorf("start recording: %w", err)
	}
	return nil
}

// StopRecording stops an in-flight capture.
func (c *Client) StopRecording(ctx context.Context, sessionID string) error {
	if err := c.post(ctx, "/record/stop", map[string]string{"session_id": sessionID}, nil); err != nil {
		return fmt.Errorf("stop recording: %w", err)
	}
	return nil
}

// RecordingStatus fetches the server-side recording state for the session.
func (c *Client) RecordingStatus(ctx context.Context, sessionID string) (*RecordingStatus, error) {
	var status RecordingStatus
	if err := c.get(ctx, "/record/status/"+url.PathEscape(sessionID), &status); err != nil {
		return nil, fmt.Errorf("recording status: %w", err)
	}
	return &status, nil
}

// ListVideos returns the server's finished recordings, newest first.
func (c *Client) ListVideos(ctx context.Context) ([]Video, error) {
	var out struct {
		Videos []Video `json:"videos"`
	}
	if err := c.get(ctx, "/videos", &out); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return out.Videos, nil
}

// DownloadVideo streams a finished recording into w and reports the bytes
// written.
func (c *Client) DownloadVideo(ctx context.Context, filename string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/videos/"+url.PathEscape(filename), nil)
	if err != nil {
		return 0, fmt.Errorf("download video: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("download video: %w", decodeError(resp))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download video: %w", err)
	}
	return n, nil
}

// OpenVLC asks the server to launch VLC on its own machine against the
// session's proxied stream.
func (c *Client) OpenVLC(ctx context.Context, sessionID string) error {
	if err := c.post(ctx, "/open/vlc", map[string]string{"session_id": sessionID}, nil); err != nil {
		return fmt.Errorf("open vlc: %w", err)
	}
	return nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	if err := c.get(ctx, "/health", nil); err != nil {
		return fmt.Errorf("health: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil {
		_ = json.Unmarshal(body, apiErr)
	}
	return apiErr
}
