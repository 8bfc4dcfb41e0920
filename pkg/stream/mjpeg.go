package stream

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
)

// MJPEGSource pulls frames straight from an MJPEG camera URL, bypassing the
// proxy. It exists alongside the websocket preview for MJPEG sources so the
// operator can confirm the raw feed independent of the server's re-encode;
// both may feed the same sink, which is harmless redundancy.
type MJPEGSource struct {
	url  string
	sink Sink

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    int64 // monotonically numbers pull loops across restarts
	loopID int64 // nonzero while a pull loop is alive

	// onError is informational only: a canary that fails to start is logged,
	// never surfaced, because the websocket preview remains primary.
	onError func(error)
}

// NewMJPEGSource builds a canary source for a raw MJPEG camera URL. onError
// may be nil.
func NewMJPEGSource(url string, sink Sink, onError func(error)) *MJPEGSource {
	return &MJPEGSource{url: url, sink: sink, onError: onError}
}

// Start begins the pull loop. A second Start while a loop is alive is a
// no-op: exactly one loop runs at a time.
func (s *MJPEGSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loopID != 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.gen++
	id := s.gen
	s.loopID = id

	go s.pull(ctx, id)
	return nil
}

// Stop cancels the pull loop and clears the sentinel.
func (s *MJPEGSource) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.loopID = 0
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Running reports whether a pull loop is alive.
func (s *MJPEGSource) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopID != 0
}

func (s *MJPEGSource) pull(ctx context.Context, id int64) {
	defer s.finish(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		s.fail(err)
		return
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.fail(err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.fail(fmt.Errorf("camera returned status %d", resp.StatusCode))
		return
	}

	boundary, err := mjpegBoundary(resp.Header.Get("Content-Type"))
	if err != nil {
		s.fail(err)
		return
	}

	reader := multipart.NewReader(resp.Body, boundary)
	var number int64
	for {
		part, err := reader.NextPart()
		if err != nil {
			if ctx.Err() == nil {
				s.fail(err)
			}
			return
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil || len(data) == 0 {
			// A torn part mid-replace is expected; skip it.
			continue
		}

		number++
		s.sink.Draw(Frame{Number: number, Data: data})
	}
}

func (s *MJPEGSource) finish(id int64) {
	s.mu.Lock()
	if s.loopID == id {
		s.loopID = 0
		s.cancel = nil
	}
	s.mu.Unlock()
}

func (s *MJPEGSource) fail(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

// mjpegBoundary extracts the part boundary from an MJPEG Content-Type header.
// Cameras are sloppy here: some prefix the boundary value with dashes that
// must not be repeated by the reader.
func mjpegBoundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("parse content type %q: %w", contentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("not an mjpeg stream: %s", mediaType)
	}
	boundary := strings.TrimPrefix(params["boundary"], "--")
	if boundary == "" {
		return "", fmt.Errorf("no boundary in content type %q", contentType)
	}
	return boundary, nil
}
