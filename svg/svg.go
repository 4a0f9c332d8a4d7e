// Package svg normalizes vector input into raster buffers at a
// caller-chosen scale. Dimension inference lives here; the actual
// rasterization is delegated to the oksvg/rasterx backend.
package svg

import (
	"encoding/xml"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/designlens/go-raster/images"
)

// defaultDimension is the fallback edge length used when the document
// declares neither width/height attributes nor a viewBox.
const defaultDimension = 1000

// Rasterize renders SVG markup into an RGBA raster on a white background.
//
// The unscaled document size is inferred in priority order: numeric
// width/height attributes on the root element (unit suffixes stripped),
// then the viewBox extent, then 1000x1000. The raster dimensions are the
// unscaled size multiplied by scale, rounded to the nearest integer.
// Inference itself never fails; only a backend parse/render error does.
//
// Arguments:
//   - svgText: The SVG document markup.
//   - scale: The scale factor applied to the inferred document size.
//
// Returns:
//   - The rendered raster, tagged with FormatSVG.
//   - An error if scale is not positive or the backend rejects the markup.
func Rasterize(svgText string, scale float64) (*images.Image, error) {
	if scale <= 0 {
		return nil, &images.ValidationError{Reason: "svg scale must be positive"}
	}

	unscaledW, unscaledH := InferDimensions(svgText)
	width := int(math.Round(unscaledW * scale))
	height := int(math.Round(unscaledH * scale))
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	icon, err := oksvg.ReadIconStream(strings.NewReader(svgText))
	if err != nil {
		return nil, errors.Wrap(err, "parse svg")
	}
	icon.SetTarget(0, 0, float64(width), float64(height))

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(width, height, dst, dst.Bounds())
	icon.Draw(rasterx.NewDasher(width, height, scanner), 1.0)

	return images.New(dst, images.FormatSVG), nil
}

// InferDimensions determines the unscaled document size from the root
// element. Malformed or missing sizing attributes never produce an error;
// the inference falls through to the next source and finally to the
// 1000x1000 default.
//
// Arguments:
//   - svgText: The SVG document markup.
//
// Returns:
//   - The unscaled width and height.
func InferDimensions(svgText string) (float64, float64) {
	attrs := rootAttributes(svgText)

	w, wok := parseLength(attrs["width"])
	h, hok := parseLength(attrs["height"])
	if wok && hok {
		return w, h
	}

	if fields := strings.Fields(attrs["viewBox"]); len(fields) == 4 {
		vw, vwok := parseLength(fields[2])
		vh, vhok := parseLength(fields[3])
		if vwok && vhok {
			return vw, vh
		}
	}

	return defaultDimension, defaultDimension
}

// rootAttributes returns the attributes of the first svg start element.
// The oksvg backend exposes only the viewBox, so the width/height
// attributes have to be read from the markup directly.
func rootAttributes(svgText string) map[string]string {
	attrs := map[string]string{}
	dec := xml.NewDecoder(strings.NewReader(svgText))
	for {
		tok, err := dec.Token()
		if err != nil {
			return attrs
		}
		if start, ok := tok.(xml.StartElement); ok {
			if start.Name.Local == "svg" {
				for _, a := range start.Attr {
					attrs[a.Name.Local] = a.Value
				}
			}
			return attrs
		}
	}
}

// parseLength parses a numeric length, tolerating a trailing unit suffix
// such as "px" or "%". Non-positive and non-numeric values are rejected.
func parseLength(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || r == '%'
	})
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
