// Package render turns preview frames into terminal output. It is the single
// sink both frame sources write to; whichever source drew last owns the
// preview, which is safe because they show the same feed.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/wael22/camrec/pkg/stream"
)

// infoEvery is the frame-number stride for refreshing the stats line. At the
// usual 15-30 fps updating it per frame is pointless churn.
const infoEvery = 30

// Renderer paints frames as half-block cells sized to the terminal viewport.
// A frame that fails to decode is counted and dropped, never surfaced: one
// bad frame must not interrupt a live preview.
type Renderer struct {
	mu sync.Mutex

	cols, rows int // viewport size in terminal cells

	width, height int // source dimensions of the last decoded frame
	preview       string
	info          string
	frames        int64
	dropped       int64

	onDraw func()
}

// New returns a renderer for a viewport of cols x rows terminal cells.
func New(cols, rows int) *Renderer {
	return &Renderer{cols: cols, rows: rows}
}

// OnDraw registers a callback fired after every successfully drawn frame.
func (r *Renderer) OnDraw(fn func()) {
	r.mu.Lock()
	r.onDraw = fn
	r.mu.Unlock()
}

// SetViewSize resizes the terminal viewport the preview is scaled into.
func (r *Renderer) SetViewSize(cols, rows int) {
	r.mu.Lock()
	r.cols, r.rows = cols, rows
	r.mu.Unlock()
}

// Draw decodes and paints one frame. Safe to call from source goroutines.
func (r *Renderer) Draw(f stream.Frame) {
	img, err := jpeg.Decode(bytes.NewReader(f.Data))
	if err != nil {
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		return
	}

	bounds := img.Bounds()

	r.mu.Lock()
	// Track source dimensions only when they actually change, mirroring the
	// resize-on-demand behavior of the preview surface.
	if r.width != bounds.Dx() || r.height != bounds.Dy() {
		r.width = bounds.Dx()
		r.height = bounds.Dy()
	}

	r.frames++
	r.preview = paint(img, r.cols, r.rows)
	if f.Number%infoEvery == 0 {
		r.info = fmt.Sprintf("Frame: %d | Resolution: %dx%d", f.Number, r.width, r.height)
	}
	onDraw := r.onDraw
	r.mu.Unlock()

	if onDraw != nil {
		onDraw()
	}
}

// Preview returns the last painted frame as styled terminal text.
func (r *Renderer) Preview() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.preview
}

// Info returns the throttled stats line.
func (r *Renderer) Info() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}

// Size returns the source dimensions of the last decoded frame.
func (r *Renderer) Size() (width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

// Frames returns how many frames have been drawn.
func (r *Renderer) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Dropped returns how many frames failed to decode and were skipped.
func (r *Renderer) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Clear wipes the preview, e.g. after a session closes.
func (r *Renderer) Clear() {
	r.mu.Lock()
	r.preview = ""
	r.info = ""
	r.width, r.height = 0, 0
	r.mu.Unlock()
}

// paint scales the image into a cols x rows cell grid, two vertical pixels
// per cell via the upper-half block.
func paint(img image.Image, cols, rows int) string {
	if cols <= 0 || rows <= 0 {
		return ""
	}

	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return ""
	}

	// Fit while preserving aspect; a terminal cell is roughly twice as tall
	// as wide, which the half-block sampling already accounts for.
	gridW, gridH := fitGrid(srcW, srcH, cols, rows)

	var b strings.Builder
	for y := 0; y < gridH; y++ {
		for x := 0; x < gridW; x++ {
			top := sample(img, bounds, x, 2*y, gridW, 2*gridH)
			bottom := sample(img, bounds, x, 2*y+1, gridW, 2*gridH)
			cell := lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bottom))
			b.WriteString(cell.Render("▀"))
		}
		if y < gridH-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func fitGrid(srcW, srcH, cols, rows int) (int, int) {
	// Each cell covers one source column and two source rows.
	w := cols
	h := srcH * w / (2 * srcW)
	if h > rows {
		h = rows
		w = 2 * srcW * h / srcH
		if w > cols {
			w = cols
		}
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

func sample(img image.Image, bounds image.Rectangle, x, y, gridW, gridH int) string {
	sx := bounds.Min.X + x*bounds.Dx()/gridW
	sy := bounds.Min.Y + y*bounds.Dy()/gridH
	if sx >= bounds.Max.X {
		sx = bounds.Max.X - 1
	}
	if sy >= bounds.Max.Y {
		sy = bounds.Max.Y - 1
	}
	r, g, b, _ := img.At(sx, sy).RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
