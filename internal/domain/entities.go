package domain

import "fmt"

// DeviceKind is the kind of a discovered media device
type DeviceKind string

const (
	KindVideoInput  DeviceKind = "videoinput"
	KindAudioInput  DeviceKind = "audioinput"
	KindAudioOutput DeviceKind = "audiooutput"
)

// VideoDevice describes one discovered capture device
type VideoDevice struct {
	ID    string     `json:"id"`    // Opaque device identifier
	Label string     `json:"label"` // Human readable name, may be empty
	Kind  DeviceKind `json:"kind"`
}

// DisplayLabel returns the label or a positional fallback for unnamed devices.
// index is zero-based.
func (d VideoDevice) DisplayLabel(index int) string {
	if d.Label != "" {
		return d.Label
	}
	return fmt.Sprintf("Webcam %d", index+1)
}

// VideoFrame is one encoded chunk read from a track
type VideoFrame struct {
	Data   []byte // Encoded payload
	Size   int    // Payload size in bytes
	Number int    // Sequence number within the reader
}

// VideoConfig holds the capture parameters for a stream
type VideoConfig struct {
	Width     int    // Preferred width in pixels
	Height    int    // Preferred height in pixels
	FrameRate int    // Preferred frame rate
	BitRate   int    // Encoder bitrate in bps
	DeviceID  string // Device to open, empty means any
	CodecName string // Encoder codec, "vp8" or "h264"
}

// VideoReader reads encoded frames until closed
type VideoReader interface {
	Read() (*VideoFrame, error)
	Close() error
}

// VideoTrack is an open live video stream. Closing it releases the device.
type VideoTrack interface {
	ID() string
	Close() error
	// CreateReader opens an encoder on the track. Chunks concatenate into
	// one playable recording.
	CreateReader() (VideoReader, error)
	// CreatePreviewReader reads raw frames as independent JPEG images.
	CreatePreviewReader() (VideoReader, error)
	// Still returns the current raw frame rasterized at native resolution.
	Still() (*StillFrame, error)
}

// StillFrame is a rasterized frame that can be encoded more than once
type StillFrame struct {
	Width  int
	Height int
	// Encode produces one independent PNG encoding of the frame.
	Encode func() ([]byte, error)
}
