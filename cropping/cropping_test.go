package cropping

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designlens/go-raster/fitting"
	"github.com/designlens/go-raster/images"
)

// texturedImage returns a flat gray canvas with a noisy patch, so the
// salience proxy has exactly one obvious region to find.
func texturedImage(w, h int, patch image.Rectangle) *images.Image {
	px := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	rng := rand.New(rand.NewSource(42))
	for y := patch.Min.Y; y < patch.Max.Y; y++ {
		for x := patch.Min.X; x < patch.Max.X; x++ {
			v := uint8(rng.Intn(256))
			px.Set(x, y, color.RGBA{R: v, G: 255 - v, B: v, A: 255})
		}
	}
	return images.New(px, images.FormatPNG)
}

func fitOptions() fitting.Options {
	return fitting.Options{MaxBytes: 1_000_000, MaxLongEdge: 4096, PreferredFormat: images.FormatWebP}
}

func TestGridScorerProposesSalientRegion(t *testing.T) {
	patch := image.Rect(600, 600, 900, 900)
	img := texturedImage(1200, 1200, patch)

	rects := NewGridScorer().Propose(img, 256)
	require.NotEmpty(t, rects)

	assert.True(t, rects[0].Overlaps(patch), "the top proposal should land on the noisy patch, got %v", rects[0])
}

func TestGridScorerOutputShape(t *testing.T) {
	img := texturedImage(1200, 900, image.Rect(100, 100, 400, 300))
	minSize := 256

	rects := NewGridScorer().Propose(img, minSize)
	require.NotEmpty(t, rects)
	assert.LessOrEqual(t, len(rects), 3)

	bounds := img.Pixels.Bounds()
	for i, r := range rects {
		assert.GreaterOrEqual(t, r.Dx(), minSize)
		assert.GreaterOrEqual(t, r.Dy(), minSize)
		assert.True(t, r.In(bounds), "proposal %v escapes image bounds", r)
		for j := i + 1; j < len(rects); j++ {
			assert.False(t, r.Overlaps(rects[j]), "proposals %d and %d overlap", i, j)
		}
	}
}

func TestGridScorerTooSmallImage(t *testing.T) {
	img := texturedImage(100, 100, image.Rect(0, 0, 50, 50))
	assert.Empty(t, NewGridScorer().Propose(img, 256), "no proposal can satisfy minSize on a smaller image")
}

func TestCropNamesAndFitsRegions(t *testing.T) {
	img := texturedImage(1200, 1200, image.Rect(600, 600, 900, 900))

	crops, err := NewCropper(fitting.NewFitter()).Crop(context.Background(), img, 256, fitOptions())
	require.NoError(t, err)
	require.NotEmpty(t, crops)

	for i, c := range crops {
		assert.Equal(t, fmt.Sprintf("crop-%d", i+1), c.Name, "crops are named in proposal order")
		require.NotNil(t, c.Artifact)
		assert.NotEmpty(t, c.Artifact.Data)
		assert.GreaterOrEqual(t, c.W, 256)
		assert.GreaterOrEqual(t, c.H, 256)
	}
}

func TestCropValidatesMinSize(t *testing.T) {
	img := texturedImage(400, 400, image.Rect(0, 0, 100, 100))
	crops, err := NewCropper(fitting.NewFitter()).Crop(context.Background(), img, 0, fitOptions())
	assert.Nil(t, crops)
	assert.Error(t, err)
}

// panickingProposer simulates a heuristic implementation that always
// blows up, which the advisory contract must survive.
type panickingProposer struct{}

func (panickingProposer) Propose(img *images.Image, minSize int) []image.Rectangle {
	panic("scoring heuristic exploded")
}

func TestCropRecoversProposerPanic(t *testing.T) {
	img := texturedImage(400, 400, image.Rect(0, 0, 100, 100))
	cropper := NewCropperWith(panickingProposer{}, fitting.NewFitter())

	crops, err := cropper.Crop(context.Background(), img, 128, fitOptions())
	assert.Nil(t, crops)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scoring heuristic exploded")
}
