// Package pipeline wires the four stages together: vector normalization,
// overview fitting, tile generation and region-of-interest cropping. One
// Run call is a self-contained invocation with no state shared across
// invocations; the caller owns cancellation, persistence and timeouts.
package pipeline

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/designlens/go-raster/cropping"
	"github.com/designlens/go-raster/fitting"
	"github.com/designlens/go-raster/images"
	"github.com/designlens/go-raster/svg"
	"github.com/designlens/go-raster/tiling"
)

// Source is the input to one invocation: either SVG markup or an already
// decoded raster. Raster wins when both are set.
type Source struct {
	// SVG is the vector document markup, used when Raster is nil.
	SVG string
	// Raster is the decoded source image.
	Raster *images.Image
}

// Params carries the per-invocation knobs.
type Params struct {
	// Fit is applied to the overview and to every tile and crop.
	Fit fitting.Options
	// SVGScale is the rasterization scale for vector sources.
	SVGScale float64
	// TilePx is the tile edge length. Tiles are generated only when a
	// source dimension exceeds it; a single tile would just repeat the
	// overview.
	TilePx int
	// OverlapPx is the overlap between adjacent tiles, in [0, TilePx).
	OverlapPx int
	// MinCropSize is the minimum crop edge length. Zero disables crops.
	MinCropSize int
}

// Result is the full output of one invocation: the manifest record plus
// the artifacts the persistence collaborator needs to write.
type Result struct {
	// Manifest is the record handed to the persistence collaborator.
	Manifest Manifest
	// Overview is the fitted whole-canvas artifact.
	Overview *fitting.Artifact
	// Tiles are the fitted grid tiles in row-major order.
	Tiles []tiling.Tile
	// Crops are the fitted regions of interest, possibly empty.
	Crops []cropping.Crop
}

// Pipeline holds the stage implementations shared by invocations.
type Pipeline struct {
	fitter  *fitting.Fitter
	tiles   *tiling.Generator
	cropper *cropping.Cropper
	log     *logrus.Logger
}

// New returns a Pipeline with the default fitter, tiler and cropper.
func New(log *logrus.Logger) *Pipeline {
	fitter := fitting.NewFitter()
	return &Pipeline{
		fitter:  fitter,
		tiles:   tiling.NewGenerator(fitter),
		cropper: cropping.NewCropper(fitter),
		log:     log,
	}
}

// WithCropper swaps the cropping stage, keeping everything else.
func (p *Pipeline) WithCropper(c *cropping.Cropper) *Pipeline {
	p.cropper = c
	return p
}

// Run executes one invocation: normalize (vector sources only), fit the
// overview, tile oversized canvases and propose crops. Cropper failures
// are downgraded to zero crops; validation and encoding failures
// propagate.
//
// Arguments:
//   - ctx: Cancellation signal from the invoking layer.
//   - src: The vector or raster source.
//   - params: The per-invocation knobs.
//
// Returns:
//   - The result with its manifest record, or the first fatal error.
func (p *Pipeline) Run(ctx context.Context, src Source, params Params) (*Result, error) {
	img := src.Raster
	sourceFormat := ""
	if img == nil {
		scale := params.SVGScale
		if scale == 0 {
			scale = 1
		}
		rasterized, err := svg.Rasterize(src.SVG, scale)
		if err != nil {
			return nil, errors.Wrap(err, "normalize svg")
		}
		img = rasterized
		sourceFormat = string(images.FormatSVG)
	} else {
		sourceFormat = string(img.Format)
	}
	p.log.WithFields(logrus.Fields{
		"source": sourceFormat,
		"width":  img.Width(),
		"height": img.Height(),
	}).Info("fitting canvas")

	overview, err := p.fitter.Fit(img, params.Fit)
	if err != nil {
		return nil, errors.Wrap(err, "fit overview")
	}
	p.log.WithFields(logrus.Fields{
		"bytes":   overview.ByteSize,
		"quality": overview.Quality,
		"scale":   overview.ScaleFactor,
	}).Info("overview fitted")

	var tiles []tiling.Tile
	if img.Width() > params.TilePx || img.Height() > params.TilePx {
		tiles, err = p.tiles.Tile(ctx, img, params.TilePx, params.OverlapPx, params.Fit)
		if err != nil {
			return nil, errors.Wrap(err, "tile canvas")
		}
		p.log.WithField("tiles", len(tiles)).Info("tiles fitted")
	}

	var crops []cropping.Crop
	if params.MinCropSize > 0 {
		crops, err = p.cropper.Crop(ctx, img, params.MinCropSize, params.Fit)
		if err != nil {
			// Advisory stage: degrade to zero crops and keep going.
			p.log.WithError(err).Warn("crop stage failed, continuing without crops")
			crops = nil
		}
	}

	return &Result{
		Manifest: buildManifest(sourceFormat, overview, tiles, crops),
		Overview: overview,
		Tiles:    tiles,
		Crops:    crops,
	}, nil
}
