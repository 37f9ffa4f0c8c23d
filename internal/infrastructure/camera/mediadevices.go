package camera

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/codec/x264"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // registers the camera driver
	"github.com/pion/mediadevices/pkg/prop"

	"webcam-fingerprint/internal/application"
	"webcam-fingerprint/internal/domain"
)

// maxChunkSize bounds one encoded chunk read from the encoder
const maxChunkSize = 1 << 20

// Recording codecs. VP8 recordings are wrapped in WebM, H.264 stays a raw
// Annex B stream.
const (
	CodecVP8  = "vp8"
	CodecH264 = "h264"

	defaultCodec = CodecVP8
)

// MediaDevicesManager implements application.CameraManager with pion/mediadevices
type MediaDevicesManager struct {
	logger application.Logger
}

// NewMediaDevicesManager creates a new manager
func NewMediaDevicesManager(logger application.Logger) *MediaDevicesManager {
	return &MediaDevicesManager{logger: logger}
}

// ListDevices returns every registered device in driver order
func (m *MediaDevicesManager) ListDevices() ([]domain.VideoDevice, error) {
	found := mediadevices.EnumerateDevices()
	devices := make([]domain.VideoDevice, len(found))
	for i, info := range found {
		devices[i] = domain.VideoDevice{
			ID:    info.DeviceID,
			Label: info.Label,
			Kind:  deviceKind(info.Kind),
		}
	}
	m.logger.Debug("enumerated %d media devices", len(devices))
	return devices, nil
}

// OpenCamera acquires the device named in config with VP8 and H.264 encoders attached
func (m *MediaDevicesManager) OpenCamera(config domain.VideoConfig) (domain.VideoTrack, error) {
	selector, err := encoderSelector(config)
	if err != nil {
		return nil, err
	}

	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: videoConstraints(config),
		Codec: selector,
	})
	if err != nil {
		return nil, fmt.Errorf("get user media: %w", err)
	}

	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		for _, t := range stream.GetTracks() {
			t.Close()
		}
		return nil, errors.New("no video track in media stream")
	}

	codec := config.CodecName
	if codec == "" {
		codec = defaultCodec
	}
	return &MediaDevicesTrack{track: tracks[0], codec: codec}, nil
}

func encoderSelector(config domain.VideoConfig) (*mediadevices.CodecSelector, error) {
	// one keyframe every two seconds
	keyFrameInterval := config.FrameRate * 2

	vp8Params, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vp8Params.BitRate = config.BitRate
	if keyFrameInterval > 0 {
		vp8Params.KeyFrameInterval = keyFrameInterval
	}

	x264Params, err := x264.NewParams()
	if err != nil {
		return nil, fmt.Errorf("x264 params: %w", err)
	}
	x264Params.BitRate = config.BitRate
	x264Params.Preset = x264.PresetUltrafast
	if keyFrameInterval > 0 {
		x264Params.KeyFrameInterval = keyFrameInterval
	}

	return mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vp8Params, &x264Params),
	), nil
}

// videoConstraints asks for the preferred format without making it strict;
// the driver picks the closest one.
func videoConstraints(config domain.VideoConfig) func(*mediadevices.MediaTrackConstraints) {
	return func(c *mediadevices.MediaTrackConstraints) {
		if config.Width > 0 {
			c.Width = prop.Int(int32(config.Width))
		}
		if config.Height > 0 {
			c.Height = prop.Int(int32(config.Height))
		}
		if config.FrameRate > 0 {
			c.FrameRate = prop.Float(float32(config.FrameRate))
		}
		if config.DeviceID != "" {
			c.DeviceID = prop.String(config.DeviceID)
		}
	}
}

func deviceKind(kind mediadevices.MediaDeviceType) domain.DeviceKind {
	switch kind {
	case mediadevices.VideoInput:
		return domain.KindVideoInput
	case mediadevices.AudioInput:
		return domain.KindAudioInput
	default:
		return domain.KindAudioOutput
	}
}

// MediaDevicesTrack wraps an acquired mediadevices video track
type MediaDevicesTrack struct {
	track mediadevices.Track
	codec string
}

func (t *MediaDevicesTrack) ID() string {
	return t.track.ID()
}

// Close stops the track and frees the device
func (t *MediaDevicesTrack) Close() error {
	return t.track.Close()
}

// CreateReader starts a new encoder session on the track
func (t *MediaDevicesTrack) CreateReader() (domain.VideoReader, error) {
	rc, err := t.track.NewEncodedIOReader(t.codec)
	if err != nil {
		return nil, fmt.Errorf("open %s encoder: %w", t.codec, err)
	}

	encoded := &encodedReader{source: rc, chunk: make([]byte, maxChunkSize)}
	if t.codec == CodecVP8 {
		return newWebMReader(encoded, time.Now), nil
	}
	return encoded, nil
}

// CreatePreviewReader reads raw frames as JPEG images
func (t *MediaDevicesTrack) CreatePreviewReader() (domain.VideoReader, error) {
	video, ok := t.track.(*mediadevices.VideoTrack)
	if !ok {
		return nil, fmt.Errorf("track %s does not carry raw video", t.track.ID())
	}
	return newPreviewReader(video.NewReader(false)), nil
}

// Still grabs the next raw frame and rasterizes it at its native size
func (t *MediaDevicesTrack) Still() (*domain.StillFrame, error) {
	video, ok := t.track.(*mediadevices.VideoTrack)
	if !ok {
		return nil, fmt.Errorf("track %s does not carry raw video", t.track.ID())
	}

	img, release, err := video.NewReader(false).Read()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	defer release()

	size := img.Bounds().Size()
	return Rasterize(img, size.X, size.Y), nil
}

// encodedReader turns encoder reads into numbered frames
type encodedReader struct {
	source io.ReadCloser
	chunk  []byte
	count  int
}

// Read returns the next encoded chunk, or nil when the encoder had nothing
func (r *encodedReader) Read() (*domain.VideoFrame, error) {
	n, err := r.source.Read(r.chunk)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	r.count++
	// chunk is reused by the next read
	data := append([]byte(nil), r.chunk[:n]...)
	return &domain.VideoFrame{Data: data, Size: n, Number: r.count}, nil
}

func (r *encodedReader) Close() error {
	return r.source.Close()
}
