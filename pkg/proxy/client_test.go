package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenSession(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session/open" {
			t.Errorf("path = %q, want /session/open", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"session_id": "abc123",
			"source_type": "mjpeg",
			"source_url": "http://cam.local/video.mjpg",
			"local_rtsp_url": "rtsp://proxy/abc123",
			"created_at": "2026-01-10T12:00:00Z",
			"verified": true
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	session, err := client.OpenSession(context.Background(), "http://cam.local/video.mjpg")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	if gotBody["url"] != "http://cam.local/video.mjpg" {
		t.Errorf("request url = %q, want the camera url", gotBody["url"])
	}
	if session.SessionID != "abc123" {
		t.Errorf("SessionID = %q, want abc123", session.SessionID)
	}
	if session.SourceType != SourceMJPEG {
		t.Errorf("SourceType = %q, want mjpeg", session.SourceType)
	}
	if session.LocalRTSPURL != "rtsp://proxy/abc123" {
		t.Errorf("LocalRTSPURL = %q, want rtsp://proxy/abc123", session.LocalRTSPURL)
	}
	if !session.Verified {
		t.Error("Verified should be true")
	}
}

func TestOpenSessionServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail": "Cannot determine source type from URL: ftp://x"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.OpenSession(context.Background(), "ftp://x")
	if err == nil {
		t.Fatal("expected an error")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", apiErr.StatusCode)
	}
	if apiErr.Detail != "Cannot determine source type from URL: ftp://x" {
		t.Errorf("Detail = %q, want the server message verbatim", apiErr.Detail)
	}
}

func TestErrorWithoutDetailFallsBackToStatusText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.StopRecording(context.Background(), "abc123")
	if err == nil {
		t.Fatal("expected an error")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if apiErr.Error() != "Internal Server Error" {
		t.Errorf("Error() = %q, want status text fallback", apiErr.Error())
	}
}

func TestRecordingStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/record/status/abc123" {
			t.Errorf("path = %q, want /record/status/abc123", r.URL.Path)
		}
		w.Write([]byte(`{"recording": true, "pid": 4242}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	status, err := client.RecordingStatus(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("RecordingStatus: %v", err)
	}
	if !status.Recording {
		t.Error("Recording should be true")
	}
	if status.PID != 4242 {
		t.Errorf("PID = %d, want 4242", status.PID)
	}
}

func TestListVideos(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos" {
			t.Errorf("path = %q, want /videos", r.URL.Path)
		}
		w.Write([]byte(`{"videos": [
			{"filename": "abc_20260110_120000.mp4", "size": 2097152, "created": "2026-01-10T12:05:00Z"}
		], "count": 1}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	videos, err := client.ListVideos(context.Background())
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("len(videos) = %d, want 1", len(videos))
	}
	if videos[0].Filename != "abc_20260110_120000.mp4" {
		t.Errorf("Filename = %q", videos[0].Filename)
	}
	if got := videos[0].SizeMB(); got != 2.0 {
		t.Errorf("SizeMB() = %v, want 2.0", got)
	}
}

func TestDownloadVideo(t *testing.T) {
	payload := []byte("not really mp4 bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos/match.mp4" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail": "Video not found"}`))
			return
		}
		w.Write(payload)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var buf bytes.Buffer
	n, err := client.DownloadVideo(context.Background(), "match.mp4", &buf)
	if err != nil {
		t.Fatalf("DownloadVideo: %v", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("n = %d, want %d", n, len(payload))
	}
	if !bytes.Equal(buf.Bytes(), payload) {
		t.Error("downloaded bytes do not match")
	}

	_, err = client.DownloadVideo(context.Background(), "missing.mp4", &buf)
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Detail != "Video not found" {
		t.Errorf("missing file error = %v, want detail Video not found", err)
	}
}

func TestStartRecordingRequestBody(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"status": "recording"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if err := client.StartRecording(context.Background(), "abc123", 60); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	if got["session_id"] != "abc123" {
		t.Errorf("session_id = %v, want abc123", got["session_id"])
	}
	if got["duration_seconds"] != float64(60) {
		t.Errorf("duration_seconds = %v, want 60", got["duration_seconds"])
	}
}
