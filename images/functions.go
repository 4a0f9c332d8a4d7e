// Package images - pixel-level helpers shared by the pipeline stages.
package images

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"
	"runtime"
	"sync"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
)

// ValidationError reports a malformed input parameter. It is raised before
// any computation is performed and is never recoverable by retrying.
type ValidationError struct {
	// Reason describes the rejected parameter.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invalid argument: " + e.Reason
}

// ScaledDims returns the dimensions of an image scaled by the given factor,
// using nearest-integer rounding. Dimensions never drop below one pixel.
//
// Arguments:
//   - width: The source width in pixels.
//   - height: The source height in pixels.
//   - scale: The scale factor to apply.
//
// Returns:
//   - The scaled width and height.
func ScaledDims(width, height int, scale float64) (int, int) {
	w := int(math.Round(float64(width) * scale))
	h := int(math.Round(float64(height) * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// CropRect copies the given sub-rectangle of src into a freshly allocated
// RGBA buffer anchored at the origin. The source image is not modified.
//
// Arguments:
//   - src: The source image to crop from.
//   - r: The sub-rectangle in source coordinates.
//
// Returns:
//   - A new RGBA image holding the cropped pixels.
func CropRect(src image.Image, r image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)
	return dst
}

// Decode decodes raster bytes in any of the supported formats, trying
// PNG, JPEG and WebP in that order.
//
// Arguments:
//   - data: The encoded image bytes.
//
// Returns:
//   - The decoded image with its detected format.
//   - An error if no supported decoder accepts the data.
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}
	if px, err := png.Decode(bytes.NewReader(data)); err == nil {
		return New(px, FormatPNG), nil
	}
	if px, err := jpeg.Decode(bytes.NewReader(data)); err == nil {
		return New(px, FormatJPEG), nil
	}
	if px, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return New(px, FormatWebP), nil
	}
	return nil, errors.New("unsupported image format")
}

// Parallel executes fn across multiple goroutines, partitioning the index
// range [0, dataSize) into contiguous chunks. Small inputs run serially
// since goroutine overhead would dominate.
//
// Arguments:
//   - dataSize: The size of the index range to process.
//   - fn: Function invoked per partition with its start and end indices.
func Parallel(dataSize int, fn func(partStart, partEnd int)) {
	numGoroutines := runtime.NumCPU()
	if dataSize < numGoroutines*2 {
		fn(0, dataSize)
		return
	}

	partSize := dataSize / numGoroutines

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		partStart := i * partSize
		partEnd := partStart + partSize
		if i == numGoroutines-1 {
			partEnd = dataSize
		}
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(partStart, partEnd)
	}
	wg.Wait()
}
