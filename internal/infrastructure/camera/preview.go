package camera

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/pion/mediadevices/pkg/io/video"

	"webcam-fingerprint/internal/domain"
)

// previewReader reads raw frames and hands them out as JPEG images
type previewReader struct {
	frames video.Reader
	count  int
	closed atomic.Bool
}

func newPreviewReader(frames video.Reader) *previewReader {
	return &previewReader{frames: frames}
}

func (r *previewReader) Read() (*domain.VideoFrame, error) {
	if r.closed.Load() {
		return nil, io.EOF
	}

	img, release, err := r.frames.Read()
	if err != nil {
		return nil, err
	}
	// The frame buffer goes back to the driver once encoded
	data, err := EncodeJPEG(img)
	if release != nil {
		release()
	}
	if err != nil {
		return nil, fmt.Errorf("encode preview frame: %w", err)
	}

	r.count++
	return &domain.VideoFrame{Data: data, Size: len(data), Number: r.count}, nil
}

// Close stops handing out frames. The raw reader has nothing to release.
func (r *previewReader) Close() error {
	r.closed.Store(true)
	return nil
}
