package homography

import (
	"math"

	"github.com/MeKo-Tech/pano/internal/geometry"
)

// DefaultInlierThreshold is the reprojection distance, in pixels, below
// which a correspondence counts as an inlier.
const DefaultInlierThreshold = 5.0

// ReprojectionError returns the distance between h applied to c.Left and
// the observed c.Right. Points mapped to infinity have infinite error.
func ReprojectionError(c geometry.Correspondence, h geometry.Homography) float64 {
	p, ok := h.Apply(c.Left)
	if !ok {
		return math.Inf(1)
	}
	d := p.Sub(c.Right).Norm()
	if math.IsNaN(d) {
		return math.Inf(1)
	}
	return d
}

// Inliers returns, in input order, the correspondences whose reprojection
// error under h is strictly below threshold.
func Inliers(set []geometry.Correspondence, h geometry.Homography, threshold float64) []geometry.Correspondence {
	out := make([]geometry.Correspondence, 0, len(set))
	for _, c := range set {
		if ReprojectionError(c, h) < threshold {
			out = append(out, c)
		}
	}
	return out
}

// CountInliers is Inliers without the allocation.
func CountInliers(set []geometry.Correspondence, h geometry.Homography, threshold float64) int {
	n := 0
	for _, c := range set {
		if ReprojectionError(c, h) < threshold {
			n++
		}
	}
	return n
}

// MarkInliers sets mask[i] to whether set[i] is an inlier under h and
// returns the inlier count. mask must be at least as long as set.
func MarkInliers(set []geometry.Correspondence, h geometry.Homography, threshold float64, mask []bool) int {
	n := 0
	for i, c := range set {
		mask[i] = ReprojectionError(c, h) < threshold
		if mask[i] {
			n++
		}
	}
	return n
}

// Select returns, in input order, the entries of set whose mask is true.
func Select(set []geometry.Correspondence, mask []bool, count int) []geometry.Correspondence {
	out := make([]geometry.Correspondence, 0, count)
	for i, c := range set {
		if mask[i] {
			out = append(out, c)
		}
	}
	return out
}

// RMSE returns the root-mean-square reprojection error over set, or 0 for
// an empty set.
func RMSE(set []geometry.Correspondence, h geometry.Homography) float64 {
	if len(set) == 0 {
		return 0
	}
	var sum float64
	for _, c := range set {
		e := ReprojectionError(c, h)
		sum += e * e
	}
	return math.Sqrt(sum / float64(len(set)))
}
