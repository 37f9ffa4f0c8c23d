package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type openStreamRequest struct {
	DeviceID string `json:"device_id" validate:"required"`
}

func (s *Server) indexHandler(c echo.Context) error {
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return c.HTMLBlob(http.StatusOK, data)
}

func (s *Server) listDevicesHandler(c echo.Context) error {
	devices := s.capture.ListDevices()
	return c.JSON(http.StatusOK, devices)
}

func (s *Server) stateHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, s.capture.Snapshot())
}

// openStreamHandler never reports device failures to the page; they are
// logged by the capture service and the view stays idle.
func (s *Server) openStreamHandler(c echo.Context) error {
	var req openStreamRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	_ = s.capture.OpenStream(req.DeviceID)
	return c.JSON(http.StatusOK, s.capture.Snapshot())
}

func (s *Server) closeStreamHandler(c echo.Context) error {
	s.capture.CloseStream()
	return c.JSON(http.StatusOK, s.capture.Snapshot())
}

func (s *Server) startRecordingHandler(c echo.Context) error {
	_ = s.capture.StartRecording()
	return c.JSON(http.StatusOK, s.capture.Snapshot())
}

// stopRecordingHandler answers right away; the finished recording reaches
// the page through the websocket once it is finalized.
func (s *Server) stopRecordingHandler(c echo.Context) error {
	s.capture.StopRecording()
	return c.JSON(http.StatusOK, s.capture.Snapshot())
}

// capturePhotoHandler leaves failures to the capture service log; the page
// keeps its previous photo.
func (s *Server) capturePhotoHandler(c echo.Context) error {
	_, _ = s.capture.CapturePhoto(c.Request().Context())
	return c.JSON(http.StatusOK, s.capture.Snapshot())
}

func (s *Server) fingerprintStateHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, s.fingerprint.View())
}

func (s *Server) captureFingerprintHandler(c echo.Context) error {
	// Requests are never cancelled, even when the page goes away
	view := s.fingerprint.Capture(context.WithoutCancel(c.Request().Context()))
	return c.JSON(http.StatusOK, view)
}

func (s *Server) artifactHandler(c echo.Context) error {
	artifact, ok := s.capture.Artifact(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "artifact not found")
	}

	disposition := "inline"
	if c.QueryParam("download") != "" {
		disposition = "attachment"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("%s; filename=%q", disposition, artifact.Filename))
	return c.Blob(http.StatusOK, artifact.MIMEType, artifact.Data)
}

func (s *Server) websocketHandler(c echo.Context) error {
	if err := s.viewers.ServeWS(c.Response(), c.Request()); err != nil {
		// The upgrader has already answered the request
		s.logger.Debug("websocket closed: %v", err)
	}
	return nil
}
