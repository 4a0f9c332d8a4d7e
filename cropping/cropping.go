// Package cropping proposes a small number of salient sub-rectangles of a
// raster and budget-fits each one. The whole stage is advisory: callers
// treat any failure as "zero crops" and carry on.
package cropping

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/designlens/go-raster/fitting"
	"github.com/designlens/go-raster/images"
)

// Crop is one proposed region together with its fitted artifact.
type Crop struct {
	// Name is the descriptive region label, e.g. "crop-1".
	Name string `json:"name" yaml:"name"`
	// X is the horizontal origin in source-pixel coordinates.
	X int `json:"x" yaml:"x"`
	// Y is the vertical origin in source-pixel coordinates.
	Y int `json:"y" yaml:"y"`
	// W is the region width before any fitting-induced scaling.
	W int `json:"w" yaml:"w"`
	// H is the region height before any fitting-induced scaling.
	H int `json:"h" yaml:"h"`
	// Artifact is the budget-fitted encoding of the region.
	Artifact *fitting.Artifact `json:"artifact" yaml:"artifact"`
}

// Proposer selects candidate regions of interest. The scoring strategy is
// not load-bearing for the rest of the pipeline and can be swapped freely;
// only the shape of the output matters: bounded count, each dimension at
// least minSize (clamped to the image), no mutual overlap.
type Proposer interface {
	// Propose returns candidate rectangles in descending salience order.
	Propose(img *images.Image, minSize int) []image.Rectangle
}

// GridScorer is the default Proposer. It partitions the image into a
// coarse cell grid, scores each cell by a salience proxy (luminance
// standard deviation plus mean absolute horizontal gradient, sampled on a
// sparse lattice) and expands the top non-overlapping cells to minSize.
type GridScorer struct {
	// Cells is the number of grid cells per axis.
	Cells int
	// MaxRegions caps the number of proposed rectangles.
	MaxRegions int
}

// NewGridScorer returns a GridScorer with a 6x6 grid and at most three
// proposed regions.
func NewGridScorer() *GridScorer {
	return &GridScorer{Cells: 6, MaxRegions: 3}
}

// scoredCell pairs a grid cell with its salience score.
type scoredCell struct {
	index int
	rect  image.Rectangle
	score float32
}

// Propose implements Proposer.
func (g *GridScorer) Propose(img *images.Image, minSize int) []image.Rectangle {
	bounds := img.Pixels.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < minSize || height < minSize {
		return nil
	}

	cellW := width / g.Cells
	cellH := height / g.Cells
	if cellW < 1 || cellH < 1 {
		return nil
	}

	cells := make([]scoredCell, 0, g.Cells*g.Cells)
	for row := 0; row < g.Cells; row++ {
		for col := 0; col < g.Cells; col++ {
			r := image.Rect(col*cellW, row*cellH, (col+1)*cellW, (row+1)*cellH).Add(bounds.Min)
			cells = append(cells, scoredCell{
				index: row*g.Cells + col,
				rect:  r,
				score: scoreCell(img.Pixels, r),
			})
		}
	}

	// Descending score, row-major on ties, so repeated runs agree.
	sort.SliceStable(cells, func(i, j int) bool {
		if cells[i].score != cells[j].score {
			return cells[i].score > cells[j].score
		}
		return cells[i].index < cells[j].index
	})

	var selected []image.Rectangle
	for _, c := range cells {
		if len(selected) == g.MaxRegions {
			break
		}
		r := expand(c.rect, minSize, bounds)
		if overlapsAny(r, selected) {
			continue
		}
		selected = append(selected, r)
	}
	return selected
}

// scoreCell computes the salience proxy for one cell on a sparse sample
// lattice, keeping the cost independent of cell size.
func scoreCell(px image.Image, r image.Rectangle) float32 {
	step := r.Dx() / 48
	if s := r.Dy() / 48; s > step {
		step = s
	}
	if step < 1 {
		step = 1
	}

	var sum, sumSq, grad float32
	var n, gn int
	for y := r.Min.Y; y < r.Max.Y; y += step {
		var prev float32
		first := true
		for x := r.Min.X; x < r.Max.X; x += step {
			l := luma(px.At(x, y))
			sum += l
			sumSq += l * l
			n++
			if !first {
				grad += math32.Abs(l - prev)
				gn++
			}
			prev = l
			first = false
		}
	}
	if n == 0 {
		return 0
	}

	mean := sum / float32(n)
	variance := sumSq/float32(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	score := math32.Sqrt(variance)
	if gn > 0 {
		score += grad / float32(gn)
	}
	return score
}

// luma returns the ITU-R BT.709 luminance of a color in the 0..255 range.
func luma(c color.Color) float32 {
	r, g, b, _ := c.RGBA()
	return 0.2126*float32(r>>8) + 0.7152*float32(g>>8) + 0.0722*float32(b>>8)
}

// expand grows a cell rectangle to at least minSize per axis, centered on
// the cell and shifted back inside the image bounds.
func expand(cell image.Rectangle, minSize int, bounds image.Rectangle) image.Rectangle {
	w := cell.Dx()
	if w < minSize {
		w = minSize
	}
	if w > bounds.Dx() {
		w = bounds.Dx()
	}
	h := cell.Dy()
	if h < minSize {
		h = minSize
	}
	if h > bounds.Dy() {
		h = bounds.Dy()
	}

	x := cell.Min.X + cell.Dx()/2 - w/2
	y := cell.Min.Y + cell.Dy()/2 - h/2
	if x < bounds.Min.X {
		x = bounds.Min.X
	}
	if x+w > bounds.Max.X {
		x = bounds.Max.X - w
	}
	if y < bounds.Min.Y {
		y = bounds.Min.Y
	}
	if y+h > bounds.Max.Y {
		y = bounds.Max.Y - h
	}
	return image.Rect(x, y, x+w, y+h)
}

// overlapsAny reports whether r intersects any rectangle in rects.
func overlapsAny(r image.Rectangle, rects []image.Rectangle) bool {
	for _, o := range rects {
		if r.Overlaps(o) {
			return true
		}
	}
	return false
}

// Cropper fits proposed regions through a shared Fitter.
type Cropper struct {
	proposer Proposer
	fitter   *fitting.Fitter
}

// NewCropper returns a Cropper using the default GridScorer.
func NewCropper(fitter *fitting.Fitter) *Cropper {
	return NewCropperWith(NewGridScorer(), fitter)
}

// NewCropperWith returns a Cropper with a custom proposer.
func NewCropperWith(proposer Proposer, fitter *fitting.Fitter) *Cropper {
	return &Cropper{proposer: proposer, fitter: fitter}
}

// Crop proposes salient regions of img and budget-fits each one with the
// same options, naming them "crop-1", "crop-2", ... in proposal order.
// Panics from the proposer are converted to errors; the caller is expected
// to downgrade any error from this stage to an empty crop list.
//
// Arguments:
//   - ctx: Cancellation signal from the invoking layer.
//   - img: The source image.
//   - minSize: The minimum width and height of each proposed region.
//   - opts: Fit options applied to every crop.
//
// Returns:
//   - The fitted crops, possibly empty.
//   - An error when minSize is invalid, the proposer misbehaves, or a
//     region fails to fit.
func (c *Cropper) Crop(ctx context.Context, img *images.Image, minSize int, opts fitting.Options) (crops []Crop, err error) {
	defer func() {
		if r := recover(); r != nil {
			crops = nil
			err = errors.Errorf("crop proposer panicked: %v", r)
		}
	}()

	if minSize <= 0 {
		return nil, &images.ValidationError{Reason: "minCropSize must be positive"}
	}

	for i, r := range c.proposer.Propose(img, minSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cropped := images.New(images.CropRect(img.Pixels, r), img.Format)
		artifact, err := c.fitter.Fit(cropped, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "fit crop at (%d,%d)", r.Min.X, r.Min.Y)
		}
		crops = append(crops, Crop{
			Name:     fmt.Sprintf("crop-%d", i+1),
			X:        r.Min.X,
			Y:        r.Min.Y,
			W:        r.Dx(),
			H:        r.Dy(),
			Artifact: artifact,
		})
	}
	return crops, nil
}
