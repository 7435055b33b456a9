package homography

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/pano/internal/geometry"
	"github.com/MeKo-Tech/pano/internal/mempool"
	"gonum.org/v1/gonum/mat"
)

// SampleSize is the number of correspondences that determine a homography.
const SampleSize = 4

// rankTolerance is the ratio between the smallest and largest singular
// values below which the DLT system is treated as rank deficient.
const rankTolerance = 1e-12

var (
	// ErrDegenerateSample is returned when the four correspondences do not
	// determine a unique homography.
	ErrDegenerateSample = errors.New("degenerate sample")
	// ErrInsufficientCorrespondences is returned when too few
	// correspondences are supplied.
	ErrInsufficientCorrespondences = errors.New("insufficient correspondences")
)

// conditioning is the similarity that moves a point set's centroid to the
// origin and its mean distance from the centroid to sqrt(2).
type conditioning struct {
	cx, cy, s float64
}

func condition(pts [SampleSize][2]float64) (conditioning, bool) {
	var c conditioning
	for _, p := range pts {
		c.cx += p[0]
		c.cy += p[1]
	}
	c.cx /= SampleSize
	c.cy /= SampleSize

	var mean float64
	for _, p := range pts {
		mean += math.Hypot(p[0]-c.cx, p[1]-c.cy)
	}
	mean /= SampleSize
	if mean == 0 || math.IsNaN(mean) || math.IsInf(mean, 0) {
		return c, false
	}
	c.s = math.Sqrt2 / mean
	return c, true
}

func (c conditioning) apply(x, y float64) (float64, float64) {
	return c.s * (x - c.cx), c.s * (y - c.cy)
}

func (c conditioning) matrix() geometry.Homography {
	return geometry.Homography{c.s, 0, -c.s * c.cx, 0, c.s, -c.s * c.cy, 0, 0, 1}
}

func (c conditioning) inverse() geometry.Homography {
	return geometry.Homography{1 / c.s, 0, c.cx, 0, 1 / c.s, c.cy, 0, 0, 1}
}

// Solve computes the homography mapping each Left point onto its Right
// point. Both point sets are conditioned (Hartley normalization) before the
// SVD. The result is normalized so that its bottom-right entry is 1.
func Solve(pairs []geometry.Correspondence) (geometry.Homography, error) {
	if len(pairs) != SampleSize {
		return geometry.Homography{}, fmt.Errorf("%w: need exactly %d, got %d",
			ErrInsufficientCorrespondences, SampleSize, len(pairs))
	}

	var left, right [SampleSize][2]float64
	for i, c := range pairs {
		left[i] = [2]float64{c.Left.X, c.Left.Y}
		right[i] = [2]float64{c.Right.X, c.Right.Y}
	}
	tl, okl := condition(left)
	tr, okr := condition(right)
	if !okl || !okr {
		return geometry.Homography{}, fmt.Errorf("%w: coincident points", ErrDegenerateSample)
	}

	data := mempool.GetFloat64(2 * SampleSize * 9)
	defer mempool.PutFloat64(data)
	a := mat.NewDense(2*SampleSize, 9, data)
	for i := range pairs {
		x, y := tl.apply(left[i][0], left[i][1])
		u, v := tr.apply(right[i][0], right[i][1])
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return geometry.Homography{}, fmt.Errorf("%w: svd did not converge", ErrDegenerateSample)
	}

	// Values are sorted descending; a vanishing eighth value means the null
	// space is wider than one dimension.
	values := svd.Values(nil)
	if values[0] == 0 || values[len(values)-1] <= rankTolerance*values[0] {
		return geometry.Homography{}, fmt.Errorf("%w: rank-deficient system", ErrDegenerateSample)
	}

	var v mat.Dense
	svd.VTo(&v)
	var hn geometry.Homography
	for i := range hn {
		hn[i] = v.At(i, 8)
	}

	n, err := tr.inverse().Mul(hn).Mul(tl.matrix()).Normalize()
	if err != nil {
		return geometry.Homography{}, fmt.Errorf("%w: %v", ErrDegenerateSample, err)
	}
	return n, nil
}
