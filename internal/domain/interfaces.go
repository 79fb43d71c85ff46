package domain

import (
	"context"
	"image"
	"io"
)

// Rasterizer turns a PDF document into page bitmaps
type Rasterizer interface {
	// Convert renders every page of the PDF at the given resolution, in document order.
	// On failure the returned slice is empty.
	Convert(ctx context.Context, pdfPath string, dpi int) ([]PageImage, error)
}

// Enhancer prepares a page bitmap for barcode detection
type Enhancer interface {
	Enhance(img image.Image) *image.NRGBA
}

// Decoder reads a barcode from an image
type Decoder interface {
	// Decode returns nil when no supported barcode is found.
	Decode(img image.Image) (*DecodeResult, error)
}

// Sink persists named output objects
type Sink interface {
	// Put stores the object under name and returns its location.
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)

	// Location describes where the sink writes, for display.
	Location() string
}
