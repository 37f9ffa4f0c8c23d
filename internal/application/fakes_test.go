package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"webcam-fingerprint/internal/domain"
)

type fakeLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *fakeLogger) Info(string, ...interface{})  {}
func (l *fakeLogger) Debug(string, ...interface{}) {}
func (l *fakeLogger) Error(msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(msg, args...))
}

func (l *fakeLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

// fakeReader counts a chunk as served once the recorder asks for the next
// one, so the chunk has been consumed by then.
type fakeReader struct {
	mu     sync.Mutex
	queue  [][]byte
	handed int
	served int
	closed bool
}

func (r *fakeReader) Read() (*domain.VideoFrame, error) {
	r.mu.Lock()
	r.served = r.handed
	if r.closed {
		r.mu.Unlock()
		return nil, io.EOF
	}
	if len(r.queue) == 0 {
		r.mu.Unlock()
		time.Sleep(time.Millisecond)
		return nil, nil
	}
	chunk := r.queue[0]
	r.queue = r.queue[1:]
	r.handed++
	n := r.handed
	r.mu.Unlock()
	return &domain.VideoFrame{Data: chunk, Size: len(chunk), Number: n}, nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) servedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.served
}

// blockingReader behaves like a real encoder: Read waits for the next
// chunk. Closing unblocks it unless ignoreClose is set.
type blockingReader struct {
	chunks      chan []byte
	closed      chan struct{}
	closeOnce   sync.Once
	ignoreClose bool

	mu       sync.Mutex
	handed   int
	consumed int
}

func newBlockingReader(ignoreClose bool) *blockingReader {
	return &blockingReader{
		chunks:      make(chan []byte),
		closed:      make(chan struct{}),
		ignoreClose: ignoreClose,
	}
}

func (r *blockingReader) Read() (*domain.VideoFrame, error) {
	r.mu.Lock()
	r.consumed = r.handed
	r.mu.Unlock()

	closed := r.closed
	if r.ignoreClose {
		closed = nil
	}
	select {
	case chunk := <-r.chunks:
		r.mu.Lock()
		r.handed++
		r.mu.Unlock()
		return &domain.VideoFrame{Data: chunk, Size: len(chunk)}, nil
	case <-closed:
		return nil, io.EOF
	}
}

func (r *blockingReader) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	return nil
}

// emit hands chunk to the recorder, failing if nobody reads it.
func (r *blockingReader) emit(t *testing.T, chunk string) {
	t.Helper()
	select {
	case r.chunks <- []byte(chunk):
	case <-time.After(2 * time.Second):
		t.Fatalf("chunk %q was never read", chunk)
	}
}

func (r *blockingReader) consumedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.consumed
}

type fakeTrack struct {
	id string

	mu         sync.Mutex
	closed     bool
	chunks     [][]byte
	readers    []*fakeReader
	nextReader domain.VideoReader
	stillErr   error
}

func (t *fakeTrack) ID() string { return t.id }

func (t *fakeTrack) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTrack) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// setChunks sets what the next reader will emit.
func (t *fakeTrack) setChunks(chunks ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunks = nil
	for _, c := range chunks {
		t.chunks = append(t.chunks, []byte(c))
	}
}

func (t *fakeTrack) CreateReader() (domain.VideoReader, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.nextReader != nil {
		r := t.nextReader
		t.nextReader = nil
		return r, nil
	}
	r := &fakeReader{queue: t.chunks}
	t.chunks = nil
	t.readers = append(t.readers, r)
	return r, nil
}

// CreatePreviewReader hands out an idle reader; the capture service never
// previews.
func (t *fakeTrack) CreatePreviewReader() (domain.VideoReader, error) {
	return &fakeReader{}, nil
}

func (t *fakeTrack) lastReader() *fakeReader {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readers[len(t.readers)-1]
}

func (t *fakeTrack) Still() (*domain.StillFrame, error) {
	if t.stillErr != nil {
		return nil, t.stillErr
	}
	n := 0
	return &domain.StillFrame{
		Width:  4,
		Height: 2,
		Encode: func() ([]byte, error) {
			n++
			return []byte(fmt.Sprintf("png-%d", n)), nil
		},
	}, nil
}

type fakeCamera struct {
	mu      sync.Mutex
	devices []domain.VideoDevice
	listErr error
	openErr error
	opened  []*fakeTrack
	delay   time.Duration
}

func newFakeCamera() *fakeCamera {
	return &fakeCamera{
		devices: []domain.VideoDevice{
			{ID: "cam-1", Label: "Front", Kind: domain.KindVideoInput},
			{ID: "mic-1", Label: "Mic", Kind: domain.KindAudioInput},
			{ID: "cam-2", Label: "", Kind: domain.KindVideoInput},
		},
	}
}

func (c *fakeCamera) ListDevices() ([]domain.VideoDevice, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.devices, nil
}

func (c *fakeCamera) OpenCamera(config domain.VideoConfig) (domain.VideoTrack, error) {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.openErr != nil {
		return nil, c.openErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	track := &fakeTrack{id: fmt.Sprintf("%s#%d", config.DeviceID, len(c.opened))}
	c.opened = append(c.opened, track)
	return track, nil
}

func (c *fakeCamera) tracks() []*fakeTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeTrack(nil), c.opened...)
}

func (c *fakeCamera) openHandles() int {
	n := 0
	for _, t := range c.tracks() {
		if !t.isClosed() {
			n++
		}
	}
	return n
}

type fakeUploader struct {
	mu        sync.Mutex
	artifacts []*domain.Artifact
	err       error
}

func (u *fakeUploader) Upload(_ context.Context, a *domain.Artifact) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.artifacts = append(u.artifacts, a)
	return u.err
}

func (u *fakeUploader) uploaded() []*domain.Artifact {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]*domain.Artifact(nil), u.artifacts...)
}

type fakeScanner struct {
	resp    *domain.FingerprintResponse
	err     error
	release chan struct{}
	started chan struct{}
}

func (s *fakeScanner) Capture(ctx context.Context) (*domain.FingerprintResponse, error) {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	return s.resp, s.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	updates []ViewUpdate
}

func (n *recordingNotifier) Publish(v any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if u, ok := v.(ViewUpdate); ok {
		n.updates = append(n.updates, u)
	}
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.updates)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for recording to finalize")
	}
}

var errDeviceBusy = errors.New("device busy")
