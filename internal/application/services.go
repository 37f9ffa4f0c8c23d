package application

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"webcam-fingerprint/internal/domain"
)

var (
	// ErrNoStream is returned by actions that need an open stream
	ErrNoStream = errors.New("no open stream")
	// ErrUnknownDevice is returned when opening a device that was never enumerated
	ErrUnknownDevice = errors.New("unknown device")
)

// Widget names carried by view updates.
const (
	WidgetCapture     = "capture"
	WidgetFingerprint = "fingerprint"
)

// ViewUpdate is what a Notifier receives after a state change
type ViewUpdate struct {
	Widget string `json:"widget"`
	View   any    `json:"view"`
}

// DeviceView is one entry of the rendered device list
type DeviceView struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// CaptureView is the rendered state of the webcam panel
type CaptureView struct {
	State            domain.SessionState `json:"state"`
	Devices          []DeviceView        `json:"devices"`
	DeviceID         string              `json:"device_id,omitempty"`
	PhotoSrc         string              `json:"photo_src,omitempty"`
	PhotoDownloadURL string              `json:"photo_download_url,omitempty"`
	VideoURL         string              `json:"video_url,omitempty"`
}

// recording is the encoder side of one active recording
type recording struct {
	reader    domain.VideoReader
	buffer    *domain.RecordingBuffer
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
	abandoned bool
	done      chan struct{}
}

func newRecording(reader domain.VideoReader) *recording {
	ctx, cancel := context.WithCancel(context.Background())
	return &recording{
		reader: reader,
		buffer: domain.NewRecordingBuffer(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// stop ends the recording and closes the encoder, which unblocks a pending Read.
func (r *recording) stop() error {
	r.cancel()
	r.closeOnce.Do(func() {
		r.closeErr = r.reader.Close()
	})
	return r.closeErr
}

// CaptureService owns the webcam stream lifecycle: open, record, capture, close
type CaptureService struct {
	cameraManager CameraManager
	preview       PreviewBinder
	uploader      Uploader
	notifier      Notifier
	logger        Logger
	config        domain.VideoConfig

	mutex        sync.Mutex
	state        domain.SessionState
	devices      []domain.VideoDevice
	activeTrack  domain.VideoTrack
	deviceID     string
	rec          *recording
	photo        *domain.Artifact
	photoPreview string
	video        *domain.Artifact
}

// NewCaptureService creates the controller. preview and notifier may be nil.
func NewCaptureService(
	cameraManager CameraManager,
	preview PreviewBinder,
	uploader Uploader,
	notifier Notifier,
	logger Logger,
	config domain.VideoConfig,
) *CaptureService {
	if preview == nil {
		preview = nopPreview{}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &CaptureService{
		cameraManager: cameraManager,
		preview:       preview,
		uploader:      uploader,
		notifier:      notifier,
		logger:        logger,
		config:        config,
	}
}

// ListDevices enumerates video inputs. Errors are logged and yield an empty list.
func (s *CaptureService) ListDevices() []domain.VideoDevice {
	devices, err := s.cameraManager.ListDevices()
	if err != nil {
		s.logger.Error("error accessing devices: %v", err)
		devices = nil
	}

	video := make([]domain.VideoDevice, 0, len(devices))
	for _, device := range devices {
		if device.Kind == domain.KindVideoInput {
			video = append(video, device)
		}
	}

	s.mutex.Lock()
	s.devices = video
	s.mutex.Unlock()

	s.publish()
	return video
}

// OpenStream releases the current stream and opens deviceID in its place.
// Failures are logged and leave the session idle.
func (s *CaptureService) OpenStream(deviceID string) error {
	if !s.knownDevice(deviceID) {
		err := fmt.Errorf("%w: %q", ErrUnknownDevice, deviceID)
		s.logger.Error("error starting stream: %v", err)
		return err
	}

	// The driver refuses a second open of a held device, so release first.
	s.CloseStream()

	config := s.config
	config.DeviceID = deviceID

	s.logger.Info("opening camera %s: %dx%d, %d fps, bitrate %d bps",
		deviceID, config.Width, config.Height, config.FrameRate, config.BitRate)

	track, err := s.cameraManager.OpenCamera(config)
	if err != nil {
		s.logger.Error("error starting stream: %v", err)
		return err
	}

	s.mutex.Lock()
	prevTrack, prevRec := s.activeTrack, s.rec
	s.state, _ = domain.Transition(s.state, domain.EventOpen)
	s.activeTrack = track
	s.deviceID = deviceID
	s.rec = nil
	s.preview.Bind(track)
	s.mutex.Unlock()

	// Another open resolved while this one was pending: last one wins.
	if prevTrack != nil {
		s.release(prevTrack, prevRec)
	}

	s.logger.Info("using camera: %s", track.ID())
	s.publish()
	return nil
}

// CloseStream releases the device. An in-progress recording is dropped
// without being finalized. Closing an idle session does nothing.
func (s *CaptureService) CloseStream() {
	s.mutex.Lock()
	track, rec := s.activeTrack, s.rec
	s.activeTrack = nil
	s.rec = nil
	s.deviceID = ""
	s.state, _ = domain.Transition(s.state, domain.EventClose)
	if track != nil {
		s.preview.Unbind()
	}
	s.mutex.Unlock()

	if track == nil {
		return
	}

	s.release(track, rec)
	s.publish()
}

// StartRecording starts a new recording on the open stream. Without a
// streaming session it does nothing.
func (s *CaptureService) StartRecording() error {
	s.mutex.Lock()
	next, err := domain.Transition(s.state, domain.EventStartRecording)
	if err != nil {
		s.mutex.Unlock()
		s.logger.Debug("start recording ignored: %v", err)
		return nil
	}

	reader, err := s.activeTrack.CreateReader()
	if err != nil {
		s.mutex.Unlock()
		s.logger.Error("error creating recorder: %v", err)
		return err
	}

	rec := newRecording(reader)
	s.rec = rec
	s.state = next
	s.mutex.Unlock()

	go s.record(rec)

	s.logger.Info("recording started (%s)", s.config.CodecName)
	s.publish()
	return nil
}

// StopRecording asks the encoder to finish. The returned channel is closed
// once the recording has been finalized and handed to the uploader; it is
// already closed when nothing was recording.
func (s *CaptureService) StopRecording() <-chan struct{} {
	s.mutex.Lock()
	next, err := domain.Transition(s.state, domain.EventStopRecording)
	if err != nil {
		s.mutex.Unlock()
		s.logger.Debug("stop recording ignored: %v", err)
		done := make(chan struct{})
		close(done)
		return done
	}

	rec := s.rec
	s.rec = nil
	s.state = next
	s.mutex.Unlock()

	if err := rec.stop(); err != nil {
		s.logger.Error("error closing recorder: %v", err)
	}
	s.publish()
	return rec.done
}

// CapturePhoto rasterizes the current frame. The preview and the uploaded
// copy come from two separate encodes.
func (s *CaptureService) CapturePhoto(ctx context.Context) (*domain.Artifact, error) {
	s.mutex.Lock()
	track := s.activeTrack
	_, err := domain.Transition(s.state, domain.EventCapture)
	s.mutex.Unlock()
	if err != nil || track == nil {
		return nil, ErrNoStream
	}

	still, err := track.Still()
	if err != nil {
		s.logger.Error("error capturing photo: %v", err)
		return nil, fmt.Errorf("capture still: %w", err)
	}

	shown, err := still.Encode()
	if err != nil {
		s.logger.Error("error encoding photo: %v", err)
		return nil, fmt.Errorf("encode still: %w", err)
	}
	photo := domain.NewArtifact(domain.ArtifactImage, "image/png", shown)

	s.mutex.Lock()
	s.photo = photo
	s.photoPreview = "data:image/png;base64," + base64.StdEncoding.EncodeToString(shown)
	s.mutex.Unlock()

	s.logger.Debug("photo captured: %dx%d, %d bytes", still.Width, still.Height, photo.Size())

	sent, err := still.Encode()
	if err != nil {
		s.logger.Error("error encoding photo for upload: %v", err)
	} else {
		s.upload(ctx, domain.NewArtifact(domain.ArtifactImage, "image/png", sent))
	}

	s.publish()
	return photo, nil
}

// State returns the current session state.
func (s *CaptureService) State() domain.SessionState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// Snapshot renders the panel state.
func (s *CaptureService) Snapshot() CaptureView {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	view := CaptureView{
		State:    s.state,
		Devices:  make([]DeviceView, 0, len(s.devices)),
		DeviceID: s.deviceID,
		PhotoSrc: s.photoPreview,
	}
	for i, device := range s.devices {
		view.Devices = append(view.Devices, DeviceView{ID: device.ID, Label: device.DisplayLabel(i)})
	}
	if s.photo != nil {
		view.PhotoDownloadURL = s.photo.URL()
	}
	if s.video != nil {
		view.VideoURL = s.video.URL()
	}
	return view
}

// Artifact looks up the latest photo or recording by id.
func (s *CaptureService) Artifact(id string) (*domain.Artifact, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, a := range []*domain.Artifact{s.photo, s.video} {
		if a != nil && a.ID == id {
			return a, true
		}
	}
	return nil, false
}

// record appends encoder output until the recording is stopped or the
// reader ends, then finalizes unless the recording was abandoned.
func (s *CaptureService) record(rec *recording) {
	defer close(rec.done)
	defer func() {
		stopped := rec.ctx.Err() != nil
		if err := rec.stop(); err != nil && !stopped {
			s.logger.Error("error closing recorder: %v", err)
		}
	}()

read:
	for {
		select {
		case <-rec.ctx.Done():
			break read
		default:
			frame, err := rec.reader.Read()
			// Whatever the encoder returns after a stop is not part of the recording
			if rec.ctx.Err() != nil {
				break read
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					s.logger.Error("error reading recording: %v", err)
				}
				break read
			}
			if frame == nil {
				continue
			}
			rec.buffer.Append(frame.Data)
		}
	}

	s.mutex.Lock()
	abandoned := rec.abandoned
	s.mutex.Unlock()
	if abandoned {
		s.logger.Debug("recording abandoned with %d chunks", rec.buffer.Len())
		return
	}

	s.finalize(rec)
}

func (s *CaptureService) finalize(rec *recording) {
	chunks := rec.buffer.Len()
	artifact := domain.NewArtifact(domain.ArtifactVideo, videoMIMEType(s.config.CodecName), rec.buffer.Finalize())

	s.mutex.Lock()
	s.video = artifact
	// The reader ended by itself while still recording.
	if s.rec == rec {
		s.rec = nil
		s.state, _ = domain.Transition(s.state, domain.EventStopRecording)
	}
	s.mutex.Unlock()

	s.logger.Info("recording finalized: %d chunks, %d bytes", chunks, artifact.Size())
	s.upload(context.Background(), artifact)
	s.publish()
}

// release drops a track and anything recording from it.
func (s *CaptureService) release(track domain.VideoTrack, rec *recording) {
	if rec != nil {
		s.mutex.Lock()
		rec.abandoned = true
		s.mutex.Unlock()
		rec.stop()
	}
	if err := track.Close(); err != nil {
		s.logger.Error("error closing track: %v", err)
	}
}

func (s *CaptureService) upload(ctx context.Context, artifact *domain.Artifact) {
	if s.uploader == nil {
		return
	}
	if err := s.uploader.Upload(ctx, artifact); err != nil {
		s.logger.Error("error uploading %s: %v", artifact.Filename, err)
	}
}

func (s *CaptureService) knownDevice(id string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, device := range s.devices {
		if device.ID == id {
			return true
		}
	}
	return false
}

func (s *CaptureService) publish() {
	s.notifier.Publish(ViewUpdate{Widget: WidgetCapture, View: s.Snapshot()})
}

// videoMIMEType names what CreateReader produces for the codec. VP8 is the
// default and comes wrapped in WebM.
func videoMIMEType(codec string) string {
	switch codec {
	case "", "vp8":
		return "video/webm"
	case "h264":
		return "video/h264"
	default:
		return "application/octet-stream"
	}
}
