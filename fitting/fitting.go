// Package fitting implements the byte-budget constrained encode search:
// given a raster image and a budget, it walks a fixed quality ladder and,
// when that fails, a fixed scale ladder, accepting the first attempt that
// fits. The search is deterministic and best-effort: when no combination
// meets the budget the last produced artifact is returned instead of an
// error, and the caller must be prepared for an over-budget result.
package fitting

import (
	"bytes"
	"image"
	"image/jpeg"
	"math"

	"github.com/chai2010/webp"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"github.com/designlens/go-raster/images"
)

// qualityLadder holds the codec quality levels tried at each scale, in
// descending order. The values are fixed configuration, not tunable state.
var qualityLadder = []int{95, 90, 85, 80, 75, 70, 65, 60, 55, 50, 45, 40, 35, 30, 25, 20}

// scaleLadder holds the scale reductions tried after the quality ladder is
// exhausted at the current scale. Each value is merged into the running
// scale via min, so the effective scale never increases.
var scaleLadder = []float64{0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.25, 0.2}

// Options carries the caller-supplied fit constraints. The value is never
// mutated by the search.
type Options struct {
	// MaxBytes is the byte budget for the encoded artifact.
	MaxBytes int `json:"maxBytes" yaml:"maxBytes"`
	// MaxLongEdge caps the longer dimension of the encoded artifact.
	MaxLongEdge int `json:"maxLongEdge" yaml:"maxLongEdge"`
	// PreferredFormat selects the codec (FormatWebP or FormatJPEG).
	PreferredFormat images.Format `json:"preferredFormat" yaml:"preferredFormat"`
}

func (o Options) validate() error {
	if o.MaxBytes <= 0 {
		return &images.ValidationError{Reason: "maxBytes must be positive"}
	}
	if o.MaxLongEdge <= 0 {
		return &images.ValidationError{Reason: "maxLongEdge must be positive"}
	}
	switch o.PreferredFormat {
	case images.FormatWebP, images.FormatJPEG:
		return nil
	default:
		return &images.ValidationError{Reason: "preferredFormat must be webp or jpeg"}
	}
}

// Artifact is the result of one fit call: the encoded bytes plus the
// parameters the search settled on. Artifacts are immutable and
// independently persistable.
type Artifact struct {
	// Data is the encoded image payload.
	Data []byte `json:"-" yaml:"-"`
	// ByteSize is the encoded size in bytes.
	ByteSize int `json:"bytes" yaml:"bytes"`
	// Width is the encoded pixel width after any fitting-induced scaling.
	Width int `json:"width" yaml:"width"`
	// Height is the encoded pixel height after any fitting-induced scaling.
	Height int `json:"height" yaml:"height"`
	// Format is the codec used.
	Format images.Format `json:"format" yaml:"format"`
	// Quality is the codec quality level the search settled on.
	Quality int `json:"quality" yaml:"quality"`
	// ScaleFactor is the scale the search settled on, relative to the source.
	ScaleFactor float64 `json:"scaleFactor" yaml:"scaleFactor"`
}

// EncodingError reports that no artifact could be produced at all: the very
// first encode attempt failed before there was anything to fall back to.
type EncodingError struct {
	Err error
}

// Error implements the error interface.
func (e *EncodingError) Error() string {
	return "encoding failed: " + e.Err.Error()
}

// Unwrap exposes the underlying codec error.
func (e *EncodingError) Unwrap() error {
	return e.Err
}

// encodeFunc encodes pixels at the given quality level.
type encodeFunc func(px image.Image, quality int) ([]byte, error)

// Fitter runs the ladder search with a per-format encoder table. The zero
// value is not usable; construct with NewFitter.
type Fitter struct {
	encoders map[images.Format]encodeFunc
}

// NewFitter returns a Fitter wired to the WebP and JPEG codecs.
func NewFitter() *Fitter {
	return &Fitter{
		encoders: map[images.Format]encodeFunc{
			images.FormatWebP: encodeWebP,
			images.FormatJPEG: encodeJPEG,
		},
	}
}

// Fit searches quality and resolution for the best-fit encoding of img
// under the given options.
//
// The search starts at scale s0 = min(1, maxLongEdge/longEdge) and walks
// the quality ladder top-down, accepting the first attempt whose size is
// within budget. If the ladder is exhausted, the scale ladder reduces the
// running scale and the quality ladder restarts. A codec error abandons
// the remaining quality levels at the current scale and falls through to
// the next scale step; only a failure before any artifact exists is fatal.
//
// Arguments:
//   - img: The source image to fit.
//   - opts: The byte budget, edge cap and preferred codec.
//
// Returns:
//   - The best-fit artifact. When the whole search space misses the
//     budget, this is the last artifact produced (lowest quality at the
//     smallest scale reached) rather than an error.
//   - A ValidationError for malformed options, or an EncodingError when
//     the first encode attempt fails outright.
func (f *Fitter) Fit(img *images.Image, opts Options) (*Artifact, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	encode := f.encoders[opts.PreferredFormat]

	width, height := img.Width(), img.Height()
	scale := 1.0
	if long := img.LongEdge(); long > opts.MaxLongEdge {
		scale = float64(opts.MaxLongEdge) / float64(long)
	}

	var best *Artifact

	// tryScale walks the quality ladder at one scale. It reports whether
	// the budget was met; a codec error ends the walk for this scale only.
	tryScale := func(s float64) (bool, error) {
		w, h := images.ScaledDims(width, height, s)
		px := img.Pixels
		if w != width || h != height {
			px = resize.Resize(uint(w), uint(h), px, resize.Lanczos3)
		}
		for _, q := range qualityLadder {
			data, err := encode(px, q)
			if err != nil {
				if best == nil {
					return false, &EncodingError{Err: errors.Wrapf(err, "encode %s at quality %d", opts.PreferredFormat, q)}
				}
				return false, nil
			}
			best = &Artifact{
				Data:        data,
				ByteSize:    len(data),
				Width:       w,
				Height:      h,
				Format:      opts.PreferredFormat,
				Quality:     q,
				ScaleFactor: s,
			}
			if best.ByteSize <= opts.MaxBytes {
				return true, nil
			}
		}
		return false, nil
	}

	met, err := tryScale(scale)
	if err != nil {
		return nil, err
	}
	for _, s := range scaleLadder {
		if met {
			break
		}
		next := math.Min(scale, s)
		if next == scale {
			continue
		}
		scale = next
		if met, err = tryScale(scale); err != nil {
			return nil, err
		}
	}
	return best, nil
}

// encodeWebP encodes pixels as lossy WebP at the given quality.
func encodeWebP(px image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, px, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, errors.Wrap(err, "webp encode")
	}
	return buf.Bytes(), nil
}

// encodeJPEG encodes pixels as JPEG at the given quality.
func encodeJPEG(px image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, px, &jpeg.Options{Quality: quality}); err != nil {
		return nil, errors.Wrap(err, "jpeg encode")
	}
	return buf.Bytes(), nil
}
