// Package tiling partitions a raster into a deterministic grid of
// overlapping sub-rectangles and budget-fits each one independently.
package tiling

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"github.com/designlens/go-raster/fitting"
	"github.com/designlens/go-raster/images"
)

// Rect is a sub-rectangle of the source image, in source-pixel coordinates.
type Rect struct {
	// X is the horizontal origin of the rectangle.
	X int `json:"x" yaml:"x"`
	// Y is the vertical origin of the rectangle.
	Y int `json:"y" yaml:"y"`
	// W is the rectangle width before any fitting-induced scaling.
	W int `json:"w" yaml:"w"`
	// H is the rectangle height before any fitting-induced scaling.
	H int `json:"h" yaml:"h"`
}

// Bounds converts the rect to an image.Rectangle.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Tile is one grid rectangle together with its fitted artifact.
type Tile struct {
	// Region is the tile's extent in source-pixel coordinates.
	Region Rect `json:"region" yaml:"region"`
	// Artifact is the budget-fitted encoding of the region.
	Artifact *fitting.Artifact `json:"artifact" yaml:"artifact"`
}

// Grid computes the tile rectangles covering a width x height image, in
// row-major order. Along each axis the origins advance by
// step = tilePx - overlapPx and clamp against the far edge, so interior
// neighbors overlap by exactly overlapPx and the final tile may overlap
// its predecessor by more. The union of the rectangles always covers the
// full image; an axis no larger than tilePx yields a single spanning tile.
//
// Arguments:
//   - width: The source image width in pixels.
//   - height: The source image height in pixels.
//   - tilePx: The tile edge length in pixels.
//   - overlapPx: The overlap between adjacent tiles, in [0, tilePx).
//
// Returns:
//   - The ordered tile rectangles.
//   - A ValidationError before any geometry is computed when tilePx is
//     not positive or overlapPx is outside [0, tilePx).
func Grid(width, height, tilePx, overlapPx int) ([]Rect, error) {
	if tilePx <= 0 {
		return nil, &images.ValidationError{Reason: "tilePx must be positive"}
	}
	if overlapPx < 0 || overlapPx >= tilePx {
		return nil, &images.ValidationError{Reason: "overlapPx must be in [0, tilePx)"}
	}
	if width <= 0 || height <= 0 {
		return nil, &images.ValidationError{Reason: "image dimensions must be positive"}
	}

	xs := axisOrigins(width, tilePx, overlapPx)
	ys := axisOrigins(height, tilePx, overlapPx)

	rects := make([]Rect, 0, len(xs)*len(ys))
	for _, y := range ys {
		for _, x := range xs {
			rects = append(rects, Rect{
				X: x,
				Y: y,
				W: min(tilePx, width-x),
				H: min(tilePx, height-y),
			})
		}
	}
	return rects, nil
}

// axisOrigins generates the distinct values of min(i*step, maxOrigin)
// along one axis, stopping once the clamped maximum repeats.
func axisOrigins(dim, tilePx, overlapPx int) []int {
	step := tilePx - overlapPx
	maxOrigin := dim - tilePx
	if maxOrigin < 0 {
		maxOrigin = 0
	}

	var origins []int
	for i := 0; ; i++ {
		o := i * step
		if o > maxOrigin {
			o = maxOrigin
		}
		origins = append(origins, o)
		if o == maxOrigin {
			return origins
		}
	}
}

// Generator fits grid tiles through a shared Fitter.
type Generator struct {
	fitter *fitting.Fitter
}

// NewGenerator returns a Generator backed by the given fitter.
func NewGenerator(fitter *fitting.Fitter) *Generator {
	return &Generator{fitter: fitter}
}

// Tile computes the grid for img and budget-fits every rectangle with the
// same options. Per-rectangle fits are independent and run concurrently;
// the returned slice is always in row-major grid order regardless of
// execution order.
//
// Arguments:
//   - ctx: Cancellation signal from the invoking layer.
//   - img: The source image.
//   - tilePx: The tile edge length in pixels.
//   - overlapPx: The overlap between adjacent tiles, in [0, tilePx).
//   - opts: Fit options applied to every tile.
//
// Returns:
//   - The fitted tiles in row-major order.
//   - A ValidationError for bad geometry parameters, the first fit error
//     encountered, or the context error if cancelled.
func (g *Generator) Tile(ctx context.Context, img *images.Image, tilePx, overlapPx int, opts fitting.Options) ([]Tile, error) {
	rects, err := Grid(img.Width(), img.Height(), tilePx, overlapPx)
	if err != nil {
		return nil, err
	}

	tiles := make([]Tile, len(rects))
	errs := make([]error, len(rects))

	images.Parallel(len(rects), func(start, end int) {
		for i := start; i < end; i++ {
			if ctx.Err() != nil {
				return
			}
			r := rects[i]
			cropped := images.New(images.CropRect(img.Pixels, r.Bounds()), img.Format)
			artifact, err := g.fitter.Fit(cropped, opts)
			if err != nil {
				errs[i] = errors.Wrapf(err, "fit tile at (%d,%d)", r.X, r.Y)
				continue
			}
			tiles[i] = Tile{Region: r, Artifact: artifact}
		}
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return tiles, nil
}
