package upload

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"

	"webcam-fingerprint/internal/application"
	"webcam-fingerprint/internal/domain"
)

// FieldName is the form field carrying the artifact
const FieldName = "file"

// LogUploader prepares the upload form and logs it instead of sending it.
// There is no backend to receive captures yet.
type LogUploader struct {
	logger application.Logger
}

// NewLogUploader creates the stub uploader
func NewLogUploader(logger application.Logger) *LogUploader {
	return &LogUploader{logger: logger}
}

// Upload builds the multipart form for artifact and logs it
func (u *LogUploader) Upload(ctx context.Context, artifact *domain.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, contentType, err := BuildForm(artifact)
	if err != nil {
		return err
	}

	u.logger.Info("%s captured and ready to send: %s, %d bytes (%s)",
		artifact.Kind, artifact.Filename, body.Len(), contentType)
	return nil
}

// BuildForm encodes artifact as a multipart form under FieldName. The
// returned content type carries the boundary.
func BuildForm(artifact *domain.Artifact) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldName, artifact.Filename))
	header.Set("Content-Type", artifact.MIMEType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(artifact.Data); err != nil {
		return nil, "", fmt.Errorf("write form part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return &body, writer.FormDataContentType(), nil
}
