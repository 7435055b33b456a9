package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// NormEpsilon is the smallest magnitude accepted for the bottom-right entry
// when normalizing a homography.
const NormEpsilon = 1e-12

var (
	// ErrSingularMatrix is returned when a homography cannot be inverted.
	ErrSingularMatrix = errors.New("singular matrix")
	// ErrZeroPivot is returned when the bottom-right entry is too close to
	// zero for normalization.
	ErrZeroPivot = errors.New("bottom-right entry is zero")
)

// Homography is a 3x3 projective transform in row-major order.
// Indices are row*3 + col.
type Homography [9]float64

// Identity returns the 3x3 identity.
func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Scaling returns a scale-then-translate transform.
func Scaling(sx, sy, tx, ty float64) Homography {
	return Homography{sx, 0, tx, 0, sy, ty, 0, 0, 1}
}

// Translation returns a pure translation.
func Translation(tx, ty float64) Homography {
	return Scaling(1, 1, tx, ty)
}

// At returns the entry at row r, column c.
func (h Homography) At(r, c int) float64 {
	return h[r*3+c]
}

// Rows returns the matrix as three rows.
func (h Homography) Rows() [3][3]float64 {
	return [3][3]float64{
		{h[0], h[1], h[2]},
		{h[3], h[4], h[5]},
		{h[6], h[7], h[8]},
	}
}

// HomographyFromRows builds a homography from three rows.
func HomographyFromRows(rows [3][3]float64) Homography {
	var h Homography
	for r := range 3 {
		for c := range 3 {
			h[r*3+c] = rows[r][c]
		}
	}
	return h
}

// Dense returns a freshly allocated gonum copy of h.
func (h Homography) Dense() *mat.Dense {
	data := make([]float64, 9)
	copy(data, h[:])
	return mat.NewDense(3, 3, data)
}

// FromDense copies a 3x3 gonum matrix into a Homography.
// It panics if m is not 3x3.
func FromDense(m mat.Matrix) Homography {
	r, c := m.Dims()
	if r != 3 || c != 3 {
		panic(fmt.Sprintf("geometry: expected 3x3 matrix, got %dx%d", r, c))
	}
	var h Homography
	for i := range 3 {
		for j := range 3 {
			h[i*3+j] = m.At(i, j)
		}
	}
	return h
}

// Mul returns the matrix product h·o.
func (h Homography) Mul(o Homography) Homography {
	var out Homography
	for r := range 3 {
		for c := range 3 {
			out[r*3+c] = h[r*3]*o[c] + h[r*3+1]*o[3+c] + h[r*3+2]*o[6+c]
		}
	}
	return out
}

// Inverse returns h⁻¹. Exactly singular and numerically ill-conditioned
// matrices both report ErrSingularMatrix.
func (h Homography) Inverse() (Homography, error) {
	if mat.Det(h.Dense()) == 0 {
		return Homography{}, ErrSingularMatrix
	}
	var inv mat.Dense
	if err := inv.Inverse(h.Dense()); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrSingularMatrix, err)
	}
	return FromDense(&inv), nil
}

// Normalize divides every entry by the bottom-right entry so that it
// becomes exactly 1.
func (h Homography) Normalize() (Homography, error) {
	d := h[8]
	if math.Abs(d) < NormEpsilon || math.IsNaN(d) {
		return Homography{}, ErrZeroPivot
	}
	var out Homography
	for i, v := range h {
		out[i] = v / d
	}
	out[8] = 1
	return out, nil
}

// Apply maps p through h and dehomogenizes. The boolean is false when the
// point maps to infinity.
func (h Homography) Apply(p r2.Point) (r2.Point, bool) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if w == 0 {
		return r2.Point{}, false
	}
	return r2.Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}, true
}

// MaxAbsDiff returns the largest entrywise absolute difference.
func (h Homography) MaxAbsDiff(o Homography) float64 {
	var m float64
	for i := range h {
		if d := math.Abs(h[i] - o[i]); d > m {
			m = d
		}
	}
	return m
}

// ApproxEqual reports whether every entry differs by at most tol.
func (h Homography) ApproxEqual(o Homography, tol float64) bool {
	return h.MaxAbsDiff(o) <= tol
}

// IsIdentity reports whether h is exactly the identity.
func (h Homography) IsIdentity() bool {
	return h == Identity()
}

// String implements fmt.Stringer.
func (h Homography) String() string {
	return fmt.Sprintf("[[%g %g %g] [%g %g %g] [%g %g %g]]",
		h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], h[8])
}
