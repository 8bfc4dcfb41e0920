package mockserver

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
)

// Fixed preview size; the client's resize-on-demand only cares that the
// dimensions are stable within one stream.
const (
	frameWidth  = 320
	frameHeight = 240
)

// TestFrame renders a synthetic JPEG whose gradient shifts with n, so a live
// preview visibly moves.
func TestFrame(n int64) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))
	shift := uint8(n * 4)
	for y := 0; y < frameHeight; y++ {
		for x := 0; x < frameWidth; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x) + shift,
				G: uint8(y),
				B: shift,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 60}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
