package stream

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// wsMessage is the server's preview frame envelope.
type wsMessage struct {
	Type        string `json:"type"`
	Data        string `json:"data"`
	FrameNumber int64  `json:"frame_number"`
	Error       string `json:"error"`
}

// WSSource reads the server-normalized preview for one session over a
// websocket. The client never sends messages. There is no automatic
// reconnect: once the socket errors or closes, the source is done and the
// disconnect callback fires exactly once.
type WSSource struct {
	url          string
	sink         Sink
	onDisconnect func(error)

	mu      sync.Mutex
	conn    *websocket.Conn
	running bool
	stopped bool
}

// NewWSSource builds a source for the /stream endpoint of the server at
// baseURL. onDisconnect may be nil.
func NewWSSource(baseURL, sessionID string, sink Sink, onDisconnect func(error)) (*WSSource, error) {
	wsURL, err := StreamURL(baseURL, sessionID)
	if err != nil {
		return nil, err
	}
	return &WSSource{
		url:          wsURL,
		sink:         sink,
		onDisconnect: onDisconnect,
	}, nil
}

// StreamURL derives the websocket preview URL from the server's HTTP base URL.
func StreamURL(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("stream url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("stream url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/stream"
	u.RawQuery = url.Values{"session_id": {sessionID}}.Encode()
	return u.String(), nil
}

// Start dials the preview socket and begins delivering frames to the sink.
// Calling Start on a running source is a no-op.
func (s *WSSource) Start() error {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return nil
	}

	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("dial preview: %w", err)
	}
	s.conn = conn
	s.running = true
	s.mu.Unlock()

	go s.readLoop(conn)
	return nil
}

// Stop closes the socket. The read loop winds down on its own; its disconnect
// callback is suppressed for deliberate stops.
func (s *WSSource) Stop() {
	s.mu.Lock()
	s.stopped = true
	conn := s.conn
	s.conn = nil
	s.running = false
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (s *WSSource) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			s.disconnected(err)
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			// One garbled message is not worth dropping the socket for.
			continue
		}

		if msg.Error != "" {
			s.disconnected(fmt.Errorf("server: %s", msg.Error))
			conn.Close()
			return
		}

		if msg.Type != "frame" || msg.Data == "" {
			continue
		}

		data, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			continue
		}

		s.sink.Draw(Frame{Number: msg.FrameNumber, Data: data})
	}
}

func (s *WSSource) disconnected(err error) {
	s.mu.Lock()
	deliberate := s.stopped
	s.running = false
	s.mu.Unlock()

	if !deliberate && s.onDisconnect != nil {
		s.onDisconnect(err)
	}
}
