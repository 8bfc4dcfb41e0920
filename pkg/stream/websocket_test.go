package stream

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestStreamURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://127.0.0.1:8000", "ws://127.0.0.1:8000/stream?session_id=abc123"},
		{"https://recorder.example.com", "wss://recorder.example.com/stream?session_id=abc123"},
		{"http://host:8000/", "ws://host:8000/stream?session_id=abc123"},
	}

	for _, tt := range tests {
		got, err := StreamURL(tt.base, "abc123")
		if err != nil {
			t.Errorf("StreamURL(%q): %v", tt.base, err)
			continue
		}
		if got != tt.want {
			t.Errorf("StreamURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}

	if _, err := StreamURL("ftp://host", "abc123"); err == nil {
		t.Error("StreamURL should reject non-http schemes")
	}
}

func TestWSSourceDeliversDecodedFrames(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x01}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("session_id"); got != "abc123" {
			t.Errorf("session_id = %q, want abc123", got)
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for i := 1; i <= 3; i++ {
			conn.WriteJSON(map[string]any{
				"type":         "frame",
				"data":         base64.StdEncoding.EncodeToString(payload),
				"frame_number": i,
			})
		}
		// Interleaved garbage must be skipped, not fatal.
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteJSON(map[string]any{
			"type":         "frame",
			"data":         base64.StdEncoding.EncodeToString(payload),
			"frame_number": 4,
		})
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	sink := &collectSink{}
	source, err := NewWSSource(server.URL, "abc123", sink, nil)
	if err != nil {
		t.Fatalf("NewWSSource: %v", err)
	}
	if err := source.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer source.Stop()

	waitFor(t, func() bool { return sink.count() >= 4 })

	frames := sink.snapshot()
	if frames[0].Number != 1 || frames[3].Number != 4 {
		t.Errorf("frame numbers = %d..%d, want 1..4", frames[0].Number, frames[3].Number)
	}
	if string(frames[0].Data) != string(payload) {
		t.Error("frame data was not base64-decoded")
	}
}

func TestWSSourceDisconnectOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(map[string]string{"error": "Session not found"})
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	disconnects := make(chan error, 1)
	source, err := NewWSSource(server.URL, "gone", &collectSink{}, func(err error) { disconnects <- err })
	if err != nil {
		t.Fatalf("NewWSSource: %v", err)
	}
	if err := source.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer source.Stop()

	select {
	case err := <-disconnects:
		if err == nil {
			t.Error("disconnect error should carry the server message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect callback never fired")
	}
}

func TestWSSourceStopSuppressesDisconnect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Keep the socket open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	disconnects := make(chan error, 1)
	source, err := NewWSSource(server.URL, "abc123", &collectSink{}, func(err error) { disconnects <- err })
	if err != nil {
		t.Fatalf("NewWSSource: %v", err)
	}
	if err := source.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	source.Stop()

	select {
	case err := <-disconnects:
		t.Errorf("deliberate Stop fired disconnect callback: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWSSourceStartAfterStopIsNoop(t *testing.T) {
	source, err := NewWSSource("http://127.0.0.1:1", "abc123", &collectSink{}, nil)
	if err != nil {
		t.Fatalf("NewWSSource: %v", err)
	}
	source.Stop()

	// A stopped source must not dial again.
	if err := source.Start(); err != nil {
		t.Errorf("Start after Stop = %v, want nil no-op", err)
	}
}
