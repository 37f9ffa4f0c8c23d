package domain

// FingerprintResponse is the JSON envelope returned by the scanner service
type FingerprintResponse struct {
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"`    // base64 image
	Message string `json:"message,omitempty"` // set when Success is false
}

// FingerprintResult holds either an image or an error, never both
type FingerprintResult struct {
	Image string // base64 PNG payload
	Error string
}

// ImageSrc returns the inline image source for the result, or "" without an image.
func (r FingerprintResult) ImageSrc() string {
	if r.Image == "" {
		return ""
	}
	return "data:image/png;base64," + r.Image
}
