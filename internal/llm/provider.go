package llm

import (
	"context"
	"encoding/base64"
)

// Provider is a text-generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	IsConfigured() bool
}

// VisionProvider is a backend that can describe an image.
type VisionProvider interface {
	Name() string
	Describe(ctx context.Context, prompt string, img ImageRef, maxTokens int) (string, error)
	IsConfigured() bool
}

// ImageRef points at an image either by URL or by its bytes. When Data is
// set it takes precedence over URL.
type ImageRef struct {
	URL      string
	Data     []byte
	MIMEType string
}

// HasData reports whether the image bytes are available.
func (r ImageRef) HasData() bool { return len(r.Data) > 0 }

// DataURI returns a base64 data URI for inline images, or the plain URL.
func (r ImageRef) DataURI() string {
	if !r.HasData() {
		return r.URL
	}
	mime := r.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
}
