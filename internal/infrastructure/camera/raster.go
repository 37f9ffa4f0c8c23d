package camera

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	"webcam-fingerprint/internal/domain"
)

// Rasterize draws img onto a width x height canvas, the way a frame is painted
// onto a canvas before export. The canvas is detached from img, so the source
// buffer may be released right after.
func Rasterize(img image.Image, width, height int) *domain.StillFrame {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	src := img.Bounds()

	if src.Dx() == width && src.Dy() == height {
		draw.Copy(canvas, image.Point{}, img, src, draw.Src, nil)
	} else {
		draw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), img, src, draw.Src, nil)
	}

	return &domain.StillFrame{
		Width:  width,
		Height: height,
		Encode: func() ([]byte, error) {
			var buf bytes.Buffer
			if err := png.Encode(&buf, canvas); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	}
}

// previewQuality keeps preview frames small enough for a local websocket
const previewQuality = 70

// EncodeJPEG encodes one preview frame. The result does not reference img.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: previewQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
