package streaming

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"webcam-fingerprint/internal/application"
	"webcam-fingerprint/internal/domain"
)

const viewerBuffer = 64

type message struct {
	kind int
	data []byte
}

type viewer struct {
	conn *websocket.Conn
	send chan message
}

// Hub pushes view updates and live preview frames to websocket viewers.
// Text messages carry view JSON, binary messages carry encoded video.
type Hub struct {
	logger    application.Logger
	upgrader  websocket.Upgrader
	debugMode bool

	mutex        sync.Mutex
	viewers      map[*viewer]struct{}
	latest       map[string][]byte
	cancel       context.CancelFunc
	frameCounter int
	startTime    time.Time
}

// NewHub creates a hub with no viewers and no bound preview
func NewHub(logger application.Logger, debugMode bool) *Hub {
	return &Hub{
		logger:    logger,
		debugMode: debugMode,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // the panel is served locally
			},
		},
		viewers: make(map[*viewer]struct{}),
		latest:  make(map[string][]byte),
	}
}

// ServeWS upgrades the request and serves one viewer until it disconnects
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed: %v", err)
		return err
	}

	v := &viewer{conn: conn, send: make(chan message, viewerBuffer)}

	h.mutex.Lock()
	h.viewers[v] = struct{}{}
	// New viewers start from the latest views
	for _, data := range h.latest {
		v.send <- message{kind: websocket.TextMessage, data: data}
	}
	h.mutex.Unlock()

	h.logger.Info("viewer connected: %s", conn.RemoteAddr())

	go h.writeLoop(v)

	// Incoming messages are ignored; reading keeps control frames flowing
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(v)
	h.logger.Info("viewer disconnected: %s", conn.RemoteAddr())
	return nil
}

// Viewers returns the number of connected viewers
func (h *Hub) Viewers() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.viewers)
}

// Publish sends a view update to every viewer
func (h *Hub) Publish(view any) {
	data, err := json.Marshal(view)
	if err != nil {
		h.logger.Error("encoding view: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if update, ok := view.(application.ViewUpdate); ok {
		h.latest[update.Widget] = data
	}
	h.broadcastLocked(message{kind: websocket.TextMessage, data: data})
}

// Bind starts streaming encoded frames of track to viewers
func (h *Hub) Bind(track domain.VideoTrack) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.cancel != nil {
		h.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.frameCounter = 0
	h.startTime = time.Now()

	go h.stream(ctx, track)
}

// Unbind stops the current preview
func (h *Hub) Unbind() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// Close disconnects every viewer and stops the preview
func (h *Hub) Close() error {
	h.Unbind()

	h.mutex.Lock()
	viewers := make([]*viewer, 0, len(h.viewers))
	for v := range h.viewers {
		viewers = append(viewers, v)
	}
	h.mutex.Unlock()

	for _, v := range viewers {
		err := v.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		if err != nil {
			h.logger.Error("error closing websocket: %v", err)
		}
		v.conn.Close()
	}
	return nil
}

func (h *Hub) stream(ctx context.Context, track domain.VideoTrack) {
	reader, err := track.CreatePreviewReader()
	if err != nil {
		h.logger.Error("error creating preview reader: %v", err)
		return
	}
	defer reader.Close()

	h.logger.Debug("preview started for %s", track.ID())

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("preview stopped for %s", track.ID())
			return
		default:
			frame, err := reader.Read()
			if err != nil {
				if ctx.Err() == nil {
					h.logger.Error("error reading preview frame: %v", err)
				}
				return
			}
			if frame == nil {
				continue
			}
			h.sendFrame(ctx, frame)
		}
	}
}

func (h *Hub) sendFrame(ctx context.Context, frame *domain.VideoFrame) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	// A frame read just before Unbind must not reach viewers
	if ctx.Err() != nil {
		return
	}

	h.broadcastLocked(message{kind: websocket.BinaryMessage, data: frame.Data})
	h.frameCounter++

	if h.debugMode && h.frameCounter%30 == 0 {
		elapsed := time.Since(h.startTime).Seconds()
		fps := float64(h.frameCounter) / elapsed
		h.logger.Debug("preview frames sent: %d, FPS: %.2f, last frame size: %d bytes",
			h.frameCounter, fps, frame.Size)
	}
}

// broadcastLocked queues msg for every viewer; slow viewers miss messages
func (h *Hub) broadcastLocked(msg message) {
	for v := range h.viewers {
		select {
		case v.send <- msg:
		default:
		}
	}
}

func (h *Hub) writeLoop(v *viewer) {
	for msg := range v.send {
		if err := v.conn.WriteMessage(msg.kind, msg.data); err != nil {
			h.logger.Debug("error writing to viewer: %v", err)
			v.conn.Close()
			return
		}
	}
}

func (h *Hub) remove(v *viewer) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.viewers[v]; !ok {
		return
	}
	delete(h.viewers, v)
	close(v.send)
	v.conn.Close()
}
