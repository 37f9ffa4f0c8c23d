package application

import (
	"context"

	"webcam-fingerprint/internal/domain"
)

// CameraManager gives access to the platform capture devices
type CameraManager interface {
	// ListDevices returns every discovered media device in platform order
	ListDevices() ([]domain.VideoDevice, error)

	// OpenCamera acquires exclusive access to the configured device
	OpenCamera(config domain.VideoConfig) (domain.VideoTrack, error)
}

// PreviewBinder shows a live track to viewers
type PreviewBinder interface {
	// Bind starts previewing track, replacing any previous binding
	Bind(track domain.VideoTrack)

	// Unbind stops the current preview, if any
	Unbind()
}

// Uploader is the destination for captured artifacts
type Uploader interface {
	Upload(ctx context.Context, artifact *domain.Artifact) error
}

// FingerprintScanner performs one request against the scanner service
type FingerprintScanner interface {
	Capture(ctx context.Context) (*domain.FingerprintResponse, error)
}

// Notifier receives view updates after every state change
type Notifier interface {
	Publish(view any)
}

// Logger is the logging port used across the application
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

type nopPreview struct{}

func (nopPreview) Bind(domain.VideoTrack) {}
func (nopPreview) Unbind()                {}

type nopNotifier struct{}

func (nopNotifier) Publish(any) {}
