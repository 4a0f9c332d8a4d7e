// Package images - shared raster model for the fitting and tiling pipeline.
package images

import "image"

// Format represents supported image formats.
type Format string

// Format constants.
const (
	// FormatWebP is the WebP image format.
	FormatWebP Format = "webp"
	// FormatJPEG is the JPEG image format.
	FormatJPEG Format = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG Format = "png"
	// FormatSVG marks a raster produced from vector input.
	FormatSVG Format = "svg"
)

// Image pairs decoded pixel data with the format it was decoded from.
// Images are immutable once produced: every stage reads one and derives
// new pixel buffers rather than mutating shared state.
type Image struct {
	// Pixels is the decoded pixel data.
	Pixels image.Image
	// Format is the source format the pixels were decoded from.
	Format Format
}

// New wraps decoded pixel data with its source format.
func New(px image.Image, format Format) *Image {
	return &Image{Pixels: px, Format: format}
}

// Width returns the pixel width of the image.
func (i *Image) Width() int {
	return i.Pixels.Bounds().Dx()
}

// Height returns the pixel height of the image.
func (i *Image) Height() int {
	return i.Pixels.Bounds().Dy()
}

// LongEdge returns the larger of the two image dimensions.
func (i *Image) LongEdge() int {
	w, h := i.Width(), i.Height()
	if w > h {
		return w
	}
	return h
}
