package proxy

import "time"

// SourceType identifies the protocol of the original camera feed.
type SourceType string

const (
	SourceMJPEG SourceType = "mjpeg"
	SourceRTSP  SourceType = "rtsp"
)

// Session is one camera-to-proxy binding as reported by the server.
type Session struct {
	SessionID    string     `json:"session_id"`
	SourceType   SourceType `json:"source_type"`
	SourceURL    string     `json:"source_url"`
	LocalRTSPURL string     `json:"local_rtsp_url"`
	CreatedAt    time.Time  `json:"created_at"`
	Verified     bool       `json:"verified"`
}

// SessionInfo is the per-session entry of the session listing endpoint.
type SessionInfo struct {
	SessionID     string     `json:"session_id"`
	SourceURL     string     `json:"source_url"`
	SourceType    SourceType `json:"source_type"`
	LocalRTSPURL  string     `json:"local_rtsp_url"`
	Recording     bool       `json:"recording"`
	PreviewActive bool       `json:"preview_active"`
	CreatedAt     time.Time  `json:"created_at"`
}

// RecordingStatus is the server's word on whether a session is recording.
// Completed is only set once the server has noticed its recorder exiting.
type RecordingStatus struct {
	Recording bool `json:"recording"`
	Completed bool `json:"completed,omitempty"`
	PID       int  `json:"pid,omitempty"`
}

// Video is a finished recording visible in the server's listing.
type Video struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// SizeMB reports the video size in megabytes.
func (v Video) SizeMB() float64 {
	return float64(v.Size) / (1024 * 1024)
}
