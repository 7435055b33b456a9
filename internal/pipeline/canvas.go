package pipeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/pano/internal/geometry"
	"github.com/MeKo-Tech/pano/internal/sequence"
	"github.com/golang/geo/r2"
)

// ErrUnboundedCanvas is returned when an image corner projects to infinity
// or behind the reference plane, or when the extent does not fit an int32.
var ErrUnboundedCanvas = errors.New("unbounded canvas")

// maxExtent bounds the canvas width and height in pixels.
const maxExtent = math.MaxInt32

// Canvas is the extent of the reference frame covered by all images.
type Canvas struct {
	MinX   float64 `json:"min_x"  yaml:"min_x"`
	MinY   float64 `json:"min_y"  yaml:"min_y"`
	MaxX   float64 `json:"max_x"  yaml:"max_x"`
	MaxY   float64 `json:"max_y"  yaml:"max_y"`
	Width  int     `json:"width"  yaml:"width"`
	Height int     `json:"height" yaml:"height"`
	// Offset translates reference-frame coordinates so the canvas starts at
	// the origin. A warper applies Offset·T[i] to image i.
	Offset geometry.Homography `json:"offset" yaml:"offset"`
}

// Corners returns the four corners of a width x height image, clockwise
// from the origin.
func Corners(width, height float64) []r2.Point {
	return []r2.Point{{X: 0, Y: 0}, {X: width, Y: 0}, {X: width, Y: height}, {X: 0, Y: height}}
}

// ComputeCanvas projects each image's corners through its transform and
// returns the union bounding box. Every image must have a known size.
func ComputeCanvas(images []sequence.Image, transforms []geometry.Homography) (*Canvas, error) {
	if len(images) != len(transforms) {
		return nil, fmt.Errorf("canvas: %d images but %d transforms", len(images), len(transforms))
	}
	if len(images) == 0 {
		return nil, errors.New("canvas: no images")
	}

	bounds := r2.EmptyRect()
	for i, img := range images {
		if !img.HasSize() {
			return nil, fmt.Errorf("canvas: image %d has unknown size", i)
		}
		h := transforms[i]
		// A homography and its negation are the same transform.
		sign := 1.0
		if h[8] < 0 {
			sign = -1
		}
		for _, c := range Corners(float64(img.Width), float64(img.Height)) {
			if w := sign * (h[6]*c.X + h[7]*c.Y + h[8]); !(w > 0) {
				return nil, fmt.Errorf("image %d: corner (%g, %g) maps behind the reference plane: %w", i, c.X, c.Y, ErrUnboundedCanvas)
			}
			p, ok := h.Apply(c)
			if !ok || math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
				return nil, fmt.Errorf("image %d: corner projects to infinity: %w", i, ErrUnboundedCanvas)
			}
			bounds = bounds.AddPoint(p)
		}
	}

	lo, hi := bounds.Lo(), bounds.Hi()
	width, height := math.Ceil(hi.X-lo.X), math.Ceil(hi.Y-lo.Y)
	if !(width <= maxExtent && height <= maxExtent) {
		return nil, fmt.Errorf("extent %gx%g: %w", width, height, ErrUnboundedCanvas)
	}
	return &Canvas{
		MinX:   lo.X,
		MinY:   lo.Y,
		MaxX:   hi.X,
		MaxY:   hi.Y,
		Width:  int(width),
		Height: int(height),
		Offset: geometry.Translation(-lo.X, -lo.Y),
	}, nil
}

func allSized(images []sequence.Image) bool {
	if len(images) == 0 {
		return false
	}
	for _, img := range images {
		if !img.HasSize() {
			return false
		}
	}
	return true
}
