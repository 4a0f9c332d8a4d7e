package tiling

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designlens/go-raster/fitting"
	"github.com/designlens/go-raster/images"
)

func testImage(w, h int) *images.Image {
	px := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: uint8((x + y) % 256), A: 255})
		}
	}
	return images.New(px, images.FormatPNG)
}

func TestGridCanonicalCase(t *testing.T) {
	rects, err := Grid(3840, 2160, 1536, 96)
	require.NoError(t, err)
	require.Len(t, rects, 6)

	expected := []Rect{
		{X: 0, Y: 0, W: 1536, H: 1536},
		{X: 1440, Y: 0, W: 1536, H: 1536},
		{X: 2304, Y: 0, W: 1536, H: 1536},
		{X: 0, Y: 624, W: 1536, H: 1536},
		{X: 1440, Y: 624, W: 1536, H: 1536},
		{X: 2304, Y: 624, W: 1536, H: 1536},
	}
	assert.Equal(t, expected, rects, "tiles must enumerate row-major with clamped final origins")
}

func TestGridSingleTile(t *testing.T) {
	rects, err := Grid(800, 600, 1536, 96)
	require.NoError(t, err)
	require.Len(t, rects, 1)
	assert.Equal(t, Rect{X: 0, Y: 0, W: 800, H: 600}, rects[0])
}

func TestGridValidation(t *testing.T) {
	tests := []struct {
		name               string
		tilePx, overlapPx  int
	}{
		{"overlap equals tile", 256, 256},
		{"overlap exceeds tile", 256, 300},
		{"negative overlap", 256, -1},
		{"zero tile", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rects, err := Grid(1000, 1000, tt.tilePx, tt.overlapPx)
			assert.Nil(t, rects)
			var verr *images.ValidationError
			assert.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
		})
	}
}

// axisCovered verifies that the tile intervals along one axis cover
// [0, dim) without gaps.
func axisCovered(t *testing.T, origins []int, sizes []int, dim int) {
	t.Helper()
	covered := 0
	for i := range origins {
		require.LessOrEqual(t, origins[i], covered, "gap before origin %d", origins[i])
		if end := origins[i] + sizes[i]; end > covered {
			covered = end
		}
	}
	assert.Equal(t, dim, covered)
}

func TestGridCoverage(t *testing.T) {
	cases := []struct {
		w, h, tile, overlap int
	}{
		{3840, 2160, 1536, 96},
		{1537, 1537, 1536, 96},
		{1536, 1536, 1536, 0},
		{5000, 100, 512, 64},
		{1, 1, 256, 0},
		{2999, 4001, 1000, 250},
	}
	for _, c := range cases {
		rects, err := Grid(c.w, c.h, c.tile, c.overlap)
		require.NoError(t, err)

		var xOrigins, xSizes, yOrigins, ySizes []int
		seenX := map[int]bool{}
		seenY := map[int]bool{}
		for _, r := range rects {
			assert.GreaterOrEqual(t, r.X, 0)
			assert.GreaterOrEqual(t, r.Y, 0)
			assert.LessOrEqual(t, r.X+r.W, c.w)
			assert.LessOrEqual(t, r.Y+r.H, c.h)
			if !seenX[r.X] {
				seenX[r.X] = true
				xOrigins = append(xOrigins, r.X)
				xSizes = append(xSizes, r.W)
			}
			if !seenY[r.Y] {
				seenY[r.Y] = true
				yOrigins = append(yOrigins, r.Y)
				ySizes = append(ySizes, r.H)
			}
		}
		axisCovered(t, xOrigins, xSizes, c.w)
		axisCovered(t, yOrigins, ySizes, c.h)
	}
}

func TestGridInteriorOverlap(t *testing.T) {
	rects, err := Grid(4000, 300, 512, 64)
	require.NoError(t, err)

	// All interior neighbors along x advance by step = tilePx - overlapPx;
	// only the clamped final tile may overlap by more.
	for i := 1; i < len(rects)-1; i++ {
		assert.Equal(t, 512-64, rects[i].X-rects[i-1].X)
	}
	last := rects[len(rects)-1]
	assert.Equal(t, 4000-512, last.X)
}

func TestTileFitsEveryRect(t *testing.T) {
	img := testImage(300, 200)
	opts := fitting.Options{MaxBytes: 1_000_000, MaxLongEdge: 4096, PreferredFormat: images.FormatWebP}

	tiles, err := NewGenerator(fitting.NewFitter()).Tile(context.Background(), img, 128, 16, opts)
	require.NoError(t, err)

	rects, err := Grid(300, 200, 128, 16)
	require.NoError(t, err)
	require.Len(t, tiles, len(rects))

	for i, tile := range tiles {
		assert.Equal(t, rects[i], tile.Region, "output order must stay row-major regardless of execution order")
		require.NotNil(t, tile.Artifact)
		assert.NotEmpty(t, tile.Artifact.Data)
		assert.Equal(t, tile.Region.W, tile.Artifact.Width, "tiles under the edge cap keep their source extent")
		assert.Equal(t, tile.Region.H, tile.Artifact.Height)
	}
}

func TestTileCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := fitting.Options{MaxBytes: 1_000_000, MaxLongEdge: 4096, PreferredFormat: images.FormatWebP}
	tiles, err := NewGenerator(fitting.NewFitter()).Tile(ctx, testImage(300, 200), 128, 16, opts)
	assert.Nil(t, tiles)
	assert.ErrorIs(t, err, context.Canceled)
}
