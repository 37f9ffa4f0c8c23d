package domain

import (
	"bytes"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ArtifactKind tells still images from recordings
type ArtifactKind string

const (
	ArtifactImage ArtifactKind = "image"
	ArtifactVideo ArtifactKind = "video"
)

// Download names used for artifacts handed to the browser and the uploader.
const (
	VideoFilename = "recorded_video.webm"
	H264Filename  = "recorded_video.h264"
	ImageFilename = "captured_image.png"
)

// Artifact is a captured still or a finalized recording
type Artifact struct {
	ID        string       `json:"id"`
	Kind      ArtifactKind `json:"kind"`
	MIMEType  string       `json:"mime_type"`
	Filename  string       `json:"filename"`
	Data      []byte       `json:"-"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewArtifact wraps data with a fresh identifier.
func NewArtifact(kind ArtifactKind, mimeType string, data []byte) *Artifact {
	filename := ImageFilename
	if kind == ArtifactVideo {
		filename = VideoFilename
		if mimeType == "video/h264" {
			filename = H264Filename
		}
	}
	return &Artifact{
		ID:        uuid.NewString(),
		Kind:      kind,
		MIMEType:  mimeType,
		Filename:  filename,
		Data:      data,
		CreatedAt: time.Now(),
	}
}

// URL is the transient reference the panel serves the artifact under.
func (a *Artifact) URL() string {
	return "/artifacts/" + a.ID
}

// Size returns the payload length in bytes.
func (a *Artifact) Size() int {
	return len(a.Data)
}

// RecordingBuffer accumulates encoded chunks of one recording in emission order
type RecordingBuffer struct {
	mu     sync.Mutex
	chunks [][]byte
	size   int
}

// NewRecordingBuffer returns an empty buffer.
func NewRecordingBuffer() *RecordingBuffer {
	return &RecordingBuffer{}
}

// Append adds a chunk. Empty chunks are skipped.
func (b *RecordingBuffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = append(b.chunks, chunk)
	b.size += len(chunk)
}

// Len returns the number of buffered chunks.
func (b *RecordingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Finalize concatenates the chunks into a single payload. A buffer with no
// chunks finalizes to an empty, non-nil payload.
func (b *RecordingBuffer) Finalize() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out bytes.Buffer
	out.Grow(b.size)
	for _, c := range b.chunks {
		out.Write(c)
	}
	if out.Len() == 0 {
		return []byte{}
	}
	return out.Bytes()
}

// Reset drops everything buffered so far.
func (b *RecordingBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
	b.size = 0
}
