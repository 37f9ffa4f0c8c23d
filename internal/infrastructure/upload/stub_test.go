package upload

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"testing"

	"webcam-fingerprint/internal/domain"
)

type captureLogger struct {
	infos []string
}

func (l *captureLogger) Info(msg string, args ...interface{}) { l.infos = append(l.infos, msg) }
func (l *captureLogger) Error(string, ...interface{}) {}
func (l *captureLogger) Debug(string, ...interface{}) {}

func TestBuildForm_FieldAndFilename(t *testing.T) {
	cases := []struct {
		kind     domain.ArtifactKind
		mimeType string
		filename string
	}{
		{domain.ArtifactVideo, "video/h264", "recorded_video.webm"},
		{domain.ArtifactImage, "image/png", "captured_image.png"},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			artifact := domain.NewArtifact(tc.kind, tc.mimeType, []byte("payload"))

			body, contentType, err := BuildForm(artifact)
			if err != nil {
				t.Fatalf("BuildForm: %v", err)
			}

			mediaType, params, err := mime.ParseMediaType(contentType)
			if err != nil || mediaType != "multipart/form-data" {
				t.Fatalf("content type = %q (%v)", contentType, err)
			}

			reader := multipart.NewReader(body, params["boundary"])
			part, err := reader.NextPart()
			if err != nil {
				t.Fatalf("NextPart: %v", err)
			}
			if part.FormName() != FieldName {
				t.Errorf("field = %q, want %q", part.FormName(), FieldName)
			}
			if part.FileName() != tc.filename {
				t.Errorf("filename = %q, want %q", part.FileName(), tc.filename)
			}
			if got := part.Header.Get("Content-Type"); got != tc.mimeType {
				t.Errorf("part content type = %q, want %q", got, tc.mimeType)
			}
			data, _ := io.ReadAll(part)
			if string(data) != "payload" {
				t.Errorf("payload = %q", data)
			}
			if _, err := reader.NextPart(); err != io.EOF {
				t.Errorf("expected a single part, got %v", err)
			}
		})
	}
}

func TestLogUploader_LogsInsteadOfSending(t *testing.T) {
	logger := &captureLogger{}
	u := NewLogUploader(logger)

	err := u.Upload(context.Background(), domain.NewArtifact(domain.ArtifactImage, "image/png", []byte("x")))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(logger.infos) != 1 || !strings.Contains(logger.infos[0], "ready to send") {
		t.Errorf("unexpected log lines: %v", logger.infos)
	}
}

func TestLogUploader_CancelledContext(t *testing.T) {
	u := NewLogUploader(&captureLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := u.Upload(ctx, domain.NewArtifact(domain.ArtifactImage, "image/png", nil)); err == nil {
		t.Fatal("expected context error")
	}
}
