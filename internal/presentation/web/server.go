package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"webcam-fingerprint/internal/application"
)

//go:embed static/index.html
var staticFiles embed.FS

// ViewerServer serves the websocket carrying view updates and preview frames
type ViewerServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request) error
}

// Server is the local HTTP panel hosting both widgets
type Server struct {
	addr        string
	capture     *application.CaptureService
	fingerprint *application.FingerprintService
	viewers     ViewerServer
	logger      application.Logger
	echo        *echo.Echo
}

// NewServer creates the panel for the given services. viewers may be nil.
func NewServer(
	port int,
	capture *application.CaptureService,
	fingerprint *application.FingerprintService,
	viewers ViewerServer,
	logger application.Logger,
) *Server {
	s := &Server{
		addr:        fmt.Sprintf(":%d", port),
		capture:     capture,
		fingerprint: fingerprint,
		viewers:     viewers,
		logger:      logger,
	}
	s.echo = s.defineServer()
	return s
}

// Handler returns the routed echo instance.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("panel listening on http://localhost%s", s.addr)
		errCh <- s.echo.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

func (s *Server) defineServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &RequestValidator{}

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health" || c.Path() == "/ws"
		},
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogURI:      true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error("%s %s - Status: %d - Latency: %v - Error: %v",
					v.Method, v.URI, v.Status, v.Latency, v.Error)
				return nil
			}
			s.logger.Debug("%s %s - Status: %d - Latency: %v", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	s.setRoutes(e)
	return e
}

func (s *Server) setRoutes(e *echo.Echo) {
	e.GET("/", s.indexHandler)
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "panel is running")
	})

	api := e.Group("/api")
	api.GET("/devices", s.listDevicesHandler)
	api.GET("/state", s.stateHandler)
	api.POST("/stream", s.openStreamHandler)
	api.DELETE("/stream", s.closeStreamHandler)
	api.POST("/recording", s.startRecordingHandler)
	api.DELETE("/recording", s.stopRecordingHandler)
	api.POST("/photo", s.capturePhotoHandler)
	api.GET("/fingerprint", s.fingerprintStateHandler)
	api.POST("/fingerprint", s.captureFingerprintHandler)

	e.GET("/artifacts/:id", s.artifactHandler)

	if s.viewers != nil {
		e.GET("/ws", s.websocketHandler)
	}
}
