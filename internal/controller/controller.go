// Package controller owns the client-side session and recording state
// machines for the camera proxy. It is the Go home of everything the preview
// page tracked on its CameraRecorder instance, with one difference called out
// below: every timer that closes over a session dies with that session.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wael22/camrec/pkg/proxy"
	"github.com/wael22/camrec/pkg/stream"
)

// SessionState is the lifecycle of the client's one session slot.
type SessionState int

const (
	StateNoSession SessionState = iota
	StateOpening
	StateOpen
	StateClosing
)

func (s SessionState) String() string {
	switch s {
	case StateNoSession:
		return "no session"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	}
	return "unknown"
}

// RecordingState is the recording axis, independent of the session axis while
// the session is open. Done and Error are reached only by reconciling against
// the server, never by direct user action.
type RecordingState int

const (
	RecIdle RecordingState = iota
	RecStarting
	RecRecording
	RecStopping
	RecDone
	RecError
)

func (s RecordingState) String() string {
	switch s {
	case RecIdle:
		return "idle"
	case RecStarting:
		return "starting"
	case RecRecording:
		return "recording"
	case RecStopping:
		return "stopping"
	case RecDone:
		return "done"
	case RecError:
		return "error"
	}
	return "unknown"
}

var (
	// ErrEmptyURL aborts OpenSession before any network call.
	ErrEmptyURL = errors.New("camera URL is empty")
	// ErrSessionOpen rejects opening on top of a live session.
	ErrSessionOpen = errors.New("a session is already open")
	// ErrNoSession rejects recording operations without a session.
	ErrNoSession = errors.New("no open session")
	// ErrAlreadyRecording rejects a second concurrent recording.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNotRecording rejects stopping an idle recorder.
	ErrNotRecording = errors.New("not recording")
)

// videoListSettleDelay gives the server time to finalize the output file
// between "recording stopped" and the file showing up in the listing.
const videoListSettleDelay = time.Second

// Snapshot is a copy of the controller's observable state for the UI.
type Snapshot struct {
	State        SessionState
	Session      *proxy.Session
	Recording    RecordingState
	Duration     int
	Elapsed      time.Duration
	Disconnected bool
	LastError    string
	Videos       []proxy.Video
}

// Controller drives one session against one proxy server. All methods are
// safe for concurrent use; source goroutines report back through callbacks
// that take the same lock.
type Controller struct {
	client *proxy.Client
	sink   stream.Sink

	mu       sync.Mutex
	state    SessionState
	session  *proxy.Session
	recState RecordingState
	recStart time.Time
	duration int

	ws           stream.Source
	canary       stream.Source
	disconnected bool

	// Both timers belong to the current session and are stopped in teardown;
	// a stale auto-stop check must never fire against a newer session.
	autoStopTimer *time.Timer
	refreshTimer  *time.Timer

	lastErr string
	videos  []proxy.Video

	onChange func()

	// Source constructors, swappable in tests.
	newWS     func(sessionID string, sink stream.Sink, onDisconnect func(error)) (stream.Source, error)
	newCanary func(sourceURL string, sink stream.Sink) stream.Source
}

// New returns a controller using client for the proxy contract and sink for
// preview frames.
func New(client *proxy.Client, sink stream.Sink) *Controller {
	c := &Controller{client: client}
	c.newWS = func(sessionID string, s stream.Sink, onDisconnect func(error)) (stream.Source, error) {
		return stream.NewWSSource(client.BaseURL, sessionID, s, onDisconnect)
	}
	c.newCanary = func(sourceURL string, s stream.Sink) stream.Source {
		return stream.NewMJPEGSource(sourceURL, s, func(err error) {
			// Canary failures are log-only: the websocket preview is primary.
			slog.Warn("mjpeg canary error", "err", err)
		})
	}
	c.sink = sink
	return c
}

// OnChange registers a callback fired after every observable state change.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// OpenSession binds url to a new proxy session and starts the preview
// sources. An empty url fails before any network call.
func (c *Controller) OpenSession(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrEmptyURL
	}

	c.mu.Lock()
	if c.state != StateNoSession {
		c.mu.Unlock()
		return ErrSessionOpen
	}
	c.state = StateOpening
	c.lastErr = ""
	c.mu.Unlock()
	c.notify()

	session, err := c.client.OpenSession(ctx, url)
	if err != nil {
		c.mu.Lock()
		c.state = StateNoSession
		c.lastErr = err.Error()
		c.mu.Unlock()
		c.notify()
		return err
	}

	c.mu.Lock()
	c.session = session
	c.state = StateOpen
	c.recState = RecIdle
	c.disconnected = false

	// MJPEG sources get the direct canary pull first: it warms the raw
	// stream and renders independently of the proxy path.
	if session.SourceType == proxy.SourceMJPEG && session.SourceURL != "" {
		c.canary = c.newCanary(session.SourceURL, c.sink)
		if err := c.canary.Start(); err != nil {
			slog.Warn("canary start failed", "session", session.SessionID, "err", err)
			c.canary = nil
		}
	}

	id := session.SessionID
	ws, err := c.newWS(id, c.sink, func(err error) { c.wsDisconnected(id, err) })
	if err == nil {
		c.ws = ws
		if err := ws.Start(); err != nil {
			slog.Warn("preview connect failed", "session", id, "err", err)
			c.ws = nil
			c.disconnected = true
		}
	} else {
		slog.Warn("preview setup failed", "session", id, "err", err)
		c.disconnected = true
	}
	c.mu.Unlock()
	c.notify()

	slog.Info("session opened",
		"session", session.SessionID,
		"type", session.SourceType,
		"verified", session.Verified)
	return nil
}

// CloseSession tears the session down. With no session it does nothing, not
// even a network call. An active recording is stopped and awaited first: the
// server ties the in-flight file to the session, and closing the proxy
// mid-recording would orphan it. The close request itself is best-effort;
// local state resets to NoSession regardless of its outcome.
func (c *Controller) CloseSession(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil
	}
	session := c.session
	recording := c.recState == RecRecording || c.recState == RecStarting
	c.state = StateClosing
	c.mu.Unlock()
	c.notify()

	if recording {
		if err := c.StopRecording(ctx); err != nil {
			slog.Error("stop recording during close failed", "session", session.SessionID, "err", err)
		}
	}

	c.mu.Lock()
	c.teardownLocked()
	c.mu.Unlock()

	err := c.client.CloseSession(ctx, session.SessionID)

	c.mu.Lock()
	c.session = nil
	c.state = StateNoSession
	c.recState = RecIdle
	c.disconnected = false
	c.mu.Unlock()
	c.notify()

	if err != nil {
		slog.Error("close session request failed", "session", session.SessionID, "err", err)
		return err
	}
	slog.Info("session closed", "session", session.SessionID)
	return nil
}

// teardownLocked stops sources and cancels session-scoped timers.
func (c *Controller) teardownLocked() {
	if c.ws != nil {
		c.ws.Stop()
		c.ws = nil
	}
	if c.canary != nil {
		c.canary.Stop()
		c.canary = nil
	}
	if c.autoStopTimer != nil {
		c.autoStopTimer.Stop()
		c.autoStopTimer = nil
	}
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
}

// StartRecording begins a capture capped at durationSeconds. On success an
// advisory timer is armed for exactly that duration; when it fires the
// controller asks the server whether the recording actually ended, since
// there is no push channel for server-side completion.
func (c *Controller) StartRecording(ctx context.Context, durationSeconds int) error {
	c.mu.Lock()
	if c.session == nil || c.state != StateOpen {
		c.mu.Unlock()
		return ErrNoSession
	}
	if c.recState == RecRecording || c.recState == RecStarting {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	session := c.session
	c.recState = RecStarting
	c.mu.Unlock()
	c.notify()

	if err := c.client.StartRecording(ctx, session.SessionID, durationSeconds); err != nil {
		c.mu.Lock()
		if c.recState == RecStarting {
			c.recState = RecIdle
		}
		c.lastErr = err.Error()
		c.mu.Unlock()
		c.notify()
		return err
	}

	c.mu.Lock()
	c.recState = RecRecording
	c.recStart = time.Now()
	c.duration = durationSeconds
	c.lastErr = ""
	id := session.SessionID
	c.autoStopTimer = time.AfterFunc(time.Duration(durationSeconds)*time.Second, func() {
		c.CheckRecordingStatus(context.Background(), id)
	})
	c.mu.Unlock()
	c.notify()

	slog.Info("recording started", "session", id, "duration_seconds", durationSeconds)
	return nil
}

// StopRecording stops the capture explicitly. The video list refresh is
// deferred by a second: the file takes a moment to finalize before it shows
// up in the listing.
func (c *Controller) StopRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	if c.recState != RecRecording && c.recState != RecStarting {
		c.mu.Unlock()
		return ErrNotRecording
	}
	session := c.session
	c.recState = RecStopping
	c.mu.Unlock()
	c.notify()

	if err := c.client.StopRecording(ctx, session.SessionID); err != nil {
		c.mu.Lock()
		if c.recState == RecStopping {
			c.recState = RecRecording
		}
		c.lastErr = err.Error()
		c.mu.Unlock()
		c.notify()
		return err
	}

	c.mu.Lock()
	c.recState = RecIdle
	if c.autoStopTimer != nil {
		c.autoStopTimer.Stop()
		c.autoStopTimer = nil
	}
	c.refreshTimer = time.AfterFunc(videoListSettleDelay, func() {
		c.RefreshVideos(context.Background())
	})
	c.mu.Unlock()
	c.notify()

	slog.Info("recording stopped", "session", session.SessionID)
	return nil
}

// CheckRecordingStatus reconciles client state against the server's answer.
// It is the only path that observes a server-side auto-stop; errors are
// logged, not surfaced, because nothing actionable hangs off a missed poll.
func (c *Controller) CheckRecordingStatus(ctx context.Context, sessionID string) {
	c.mu.Lock()
	current := c.session != nil && c.session.SessionID == sessionID
	c.mu.Unlock()
	if !current {
		return
	}

	status, err := c.client.RecordingStatus(ctx, sessionID)
	if err != nil {
		slog.Error("recording status check failed", "session", sessionID, "err", err)
		return
	}

	c.mu.Lock()
	changed := false
	if !status.Recording && c.recState == RecRecording &&
		c.session != nil && c.session.SessionID == sessionID {
		c.recState = RecDone
		changed = true
	}
	c.mu.Unlock()

	if changed {
		slog.Info("recording finished on server", "session", sessionID)
		c.notify()
		c.RefreshVideos(ctx)
	}
}

// RefreshVideos re-fetches the server's video listing.
func (c *Controller) RefreshVideos(ctx context.Context) {
	videos, err := c.client.ListVideos(ctx)
	if err != nil {
		slog.Error("video list refresh failed", "err", err)
		return
	}

	c.mu.Lock()
	c.videos = videos
	c.mu.Unlock()
	c.notify()
}

// OpenVLC asks the server to launch VLC against the current session's
// proxied stream.
func (c *Controller) OpenVLC(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	id := c.session.SessionID
	c.mu.Unlock()

	return c.client.OpenVLC(ctx, id)
}

// Snapshot copies the observable state for the UI.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:        c.state,
		Recording:    c.recState,
		Duration:     c.duration,
		Disconnected: c.disconnected,
		LastError:    c.lastErr,
		Videos:       append([]proxy.Video(nil), c.videos...),
	}
	if c.session != nil {
		s := *c.session
		snap.Session = &s
	}
	if c.recState == RecRecording {
		snap.Elapsed = time.Since(c.recStart)
	}
	return snap
}

// wsDisconnected downgrades the preview to disconnected. No reconnect is
// scheduled; only a fresh OpenSession builds new sources.
func (c *Controller) wsDisconnected(sessionID string, err error) {
	c.mu.Lock()
	stale := c.session == nil || c.session.SessionID != sessionID
	if !stale {
		c.disconnected = true
	}
	c.mu.Unlock()

	if stale {
		return
	}
	slog.Warn("preview disconnected", "session", sessionID, "err", err)
	c.notify()
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
