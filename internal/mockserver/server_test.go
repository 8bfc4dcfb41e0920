package mockserver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wael22/camrec/internal/render"
	"github.com/wael22/camrec/pkg/proxy"
	"github.com/wael22/camrec/pkg/stream"
)

func startServer(t *testing.T, videosDir string, fps int) *Server {
	t.Helper()
	srv := New("0", videosDir, fps)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestDetectSourceType(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"rtsp://cam.local/stream", "rtsp", false},
		{"rtsps://cam.local/stream", "rtsp", false},
		{"http://cam.local/video.mjpg", "mjpeg", false},
		{"https://cam.local/video.mjpg", "mjpeg", false},
		{"ftp://cam.local/file", "", true},
		{"not a url at all", "", true},
	}
	for _, tt := range tests {
		got, err := detectSourceType(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("detectSourceType(%q) = %q, want error", tt.url, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("detectSourceType(%q): %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("detectSourceType(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestPreviewStreamRendersFrames(t *testing.T) {
	srv := startServer(t, t.TempDir(), 60)
	client := proxy.NewClient(srv.URL())
	ctx := context.Background()

	session, err := client.OpenSession(ctx, "http://127.0.0.1:1/video.mjpg")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if session.SourceType != proxy.SourceMJPEG {
		t.Errorf("SourceType = %q, want mjpeg", session.SourceType)
	}
	if !session.Verified {
		t.Error("Verified should be true")
	}

	renderer := render.New(40, 12)
	source, err := stream.NewWSSource(srv.URL(), session.SessionID, renderer, func(err error) {})
	if err != nil {
		t.Fatalf("NewWSSource: %v", err)
	}
	if err := source.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer source.Stop()

	// The info line only updates every 30th frame, so wait past that mark.
	waitFor(t, 5*time.Second, func() bool { return renderer.Frames() >= 30 })

	if renderer.Preview() == "" {
		t.Error("preview should not be empty after decoded frames")
	}
	if info := renderer.Info(); !strings.Contains(info, "320x240") {
		t.Errorf("Info = %q, want the generated frame resolution", info)
	}
	if renderer.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0 for well-formed generated frames", renderer.Dropped())
	}

	if err := client.CloseSession(ctx, session.SessionID); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
}

func TestStreamRejectsUnknownSession(t *testing.T) {
	srv := startServer(t, t.TempDir(), 30)

	disconnected := make(chan error, 1)
	source, err := stream.NewWSSource(srv.URL(), "no-such-session", render.New(10, 5), func(err error) {
		disconnected <- err
	})
	if err != nil {
		t.Fatalf("NewWSSource: %v", err)
	}
	if err := source.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer source.Stop()

	select {
	case err := <-disconnected:
		if !strings.Contains(err.Error(), "Session not found") {
			t.Errorf("disconnect error = %v, want the server's error payload", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no disconnect for unknown session")
	}
}

func TestRecordingAutoStopsAtCap(t *testing.T) {
	videosDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(videosDir, "cam_20260829.mp4"), []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := startServer(t, videosDir, 15)
	client := proxy.NewClient(srv.URL())
	ctx := context.Background()

	session, err := client.OpenSession(ctx, "rtsp://cam.local/stream")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if session.SourceType != proxy.SourceRTSP {
		t.Errorf("SourceType = %q, want rtsp", session.SourceType)
	}

	if err := client.StartRecording(ctx, session.SessionID, 1); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	status, err := client.RecordingStatus(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("RecordingStatus: %v", err)
	}
	if !status.Recording {
		t.Error("Recording = false right after start, want true")
	}

	waitFor(t, 3*time.Second, func() bool {
		status, err := client.RecordingStatus(ctx, session.SessionID)
		return err == nil && !status.Recording
	})

	videos, err := client.ListVideos(ctx)
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(videos) != 1 || videos[0].Filename != "cam_20260829.mp4" {
		t.Errorf("videos = %+v, want the seeded file", videos)
	}
}

func TestDoubleStartRecordingRejected(t *testing.T) {
	srv := startServer(t, t.TempDir(), 15)
	client := proxy.NewClient(srv.URL())
	ctx := context.Background()

	session, err := client.OpenSession(ctx, "rtsp://cam.local/stream")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if err := client.StartRecording(ctx, session.SessionID, 60); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	err = client.StartRecording(ctx, session.SessionID, 60)
	if err == nil || !strings.Contains(err.Error(), "already recording") {
		t.Errorf("second start = %v, want already-recording detail", err)
	}
	if err := client.StopRecording(ctx, session.SessionID); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
}

func TestSessionCapEnforced(t *testing.T) {
	srv := startServer(t, t.TempDir(), 15)
	client := proxy.NewClient(srv.URL())
	ctx := context.Background()

	for i := 0; i < MaxSessions; i++ {
		url := fmt.Sprintf("rtsp://cam.local/stream%d", i)
		if _, err := client.OpenSession(ctx, url); err != nil {
			t.Fatalf("OpenSession %d: %v", i, err)
		}
	}

	_, err := client.OpenSession(ctx, "rtsp://cam.local/one-too-many")
	if err == nil || !strings.Contains(err.Error(), "Maximum number of sessions") {
		t.Errorf("open past cap = %v, want the cap detail", err)
	}

	sessions, err := client.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != MaxSessions {
		t.Errorf("sessions = %d, want %d", len(sessions), MaxSessions)
	}
}

func TestVideoDownloadGuardsTraversal(t *testing.T) {
	videosDir := t.TempDir()
	payload := []byte("mp4 bytes")
	if err := os.WriteFile(filepath.Join(videosDir, "ok.mp4"), payload, 0o644); err != nil {
		t.Fatal(err)
	}

	srv := startServer(t, videosDir, 15)
	client := proxy.NewClient(srv.URL())
	ctx := context.Background()

	var buf bytes.Buffer
	n, err := client.DownloadVideo(ctx, "ok.mp4", &buf)
	if err != nil {
		t.Fatalf("DownloadVideo: %v", err)
	}
	if n != int64(len(payload)) || buf.String() != string(payload) {
		t.Errorf("downloaded %d bytes %q, want %q", n, buf.String(), payload)
	}

	if _, err := client.DownloadVideo(ctx, "../secret.mp4", io.Discard); err == nil {
		t.Error("traversal path should be rejected")
	}
	if _, err := client.DownloadVideo(ctx, "missing.mp4", io.Discard); err == nil {
		t.Error("missing file should 404")
	}
}
