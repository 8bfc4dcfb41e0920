// Package stream delivers preview frames from the camera proxy. Two sources
// exist: the websocket preview the server normalizes for every source type,
// and a direct MJPEG pull against the raw camera URL used to confirm MJPEG
// sources independently of the proxy's re-encode.
package stream

// Frame is a single JPEG image in flight to a sink. Frames are transient and
// never persisted; Number increases monotonically within one source and is
// used for display throttling, not ordering.
type Frame struct {
	Number int64
	Data   []byte
}

// Sink receives frames from a source. Draw must tolerate being called from
// the source's read goroutine.
type Sink interface {
	Draw(Frame)
}

// Source is a startable, stoppable frame feed. Start is idempotent while the
// source is running; a source that has disconnected is not restarted, a fresh
// session opens fresh sources.
type Source interface {
	Start() error
	Stop()
}
