package application

import (
	"context"
	"errors"
	"sync"

	"webcam-fingerprint/internal/domain"
)

// Error texts used when the scanner gives no usable message.
const (
	FallbackOperationError = "operation failed"
	FallbackUnknownError   = "unknown error"
)

var errEmptyResponse = errors.New("empty response from scanner")

// FingerprintView is the rendered state of the fingerprint widget
type FingerprintView struct {
	Pending  bool   `json:"pending"`
	ImageSrc string `json:"image_src,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FingerprintService runs scanner requests and keeps the latest outcome.
// Concurrent captures are not serialized; the last one to finish wins.
type FingerprintService struct {
	scanner  FingerprintScanner
	notifier Notifier
	logger   Logger

	mutex   sync.Mutex
	pending int
	result  domain.FingerprintResult
}

// NewFingerprintService creates the widget service. notifier may be nil.
func NewFingerprintService(scanner FingerprintScanner, notifier Notifier, logger Logger) *FingerprintService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &FingerprintService{
		scanner:  scanner,
		notifier: notifier,
		logger:   logger,
	}
}

// Capture performs one scanner round trip and returns the resulting view.
func (s *FingerprintService) Capture(ctx context.Context) FingerprintView {
	s.mutex.Lock()
	s.pending++
	s.result.Error = ""
	view := s.viewLocked()
	s.mutex.Unlock()
	s.publish(view)

	resp, err := s.scanner.Capture(ctx)
	if err == nil && resp == nil {
		err = errEmptyResponse
	}

	s.mutex.Lock()
	switch {
	case err != nil:
		msg := err.Error()
		if msg == "" {
			msg = FallbackUnknownError
		}
		s.result = domain.FingerprintResult{Error: msg}
	case resp.Success:
		s.result = domain.FingerprintResult{Image: resp.Data}
	default:
		msg := resp.Message
		if msg == "" {
			msg = FallbackOperationError
		}
		s.result = domain.FingerprintResult{Error: msg}
	}
	s.pending--
	view = s.viewLocked()
	s.mutex.Unlock()

	if err != nil {
		s.logger.Error("fingerprint capture failed: %v", err)
	} else if !resp.Success {
		s.logger.Info("fingerprint scanner reported failure: %s", view.Error)
	}

	s.publish(view)
	return view
}

// View returns the current widget state.
func (s *FingerprintService) View() FingerprintView {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.viewLocked()
}

// Result returns the latest outcome.
func (s *FingerprintService) Result() domain.FingerprintResult {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.result
}

func (s *FingerprintService) viewLocked() FingerprintView {
	return FingerprintView{
		Pending:  s.pending > 0,
		ImageSrc: s.result.ImageSrc(),
		Error:    s.result.Error,
	}
}

func (s *FingerprintService) publish(view FingerprintView) {
	s.notifier.Publish(ViewUpdate{Widget: WidgetFingerprint, View: view})
}
