package geometry

import (
	"fmt"

	"github.com/golang/geo/r2"
)

// Correspondence is a matched pair of points: Left in the left image and
// Right in the right image.
type Correspondence struct {
	Left  r2.Point
	Right r2.Point
}

// NewCorrespondence builds a correspondence from raw coordinates.
func NewCorrespondence(xl, yl, xr, yr float64) Correspondence {
	return Correspondence{
		Left:  r2.Point{X: xl, Y: yl},
		Right: r2.Point{X: xr, Y: yr},
	}
}

// Row returns the correspondence in its wire form [xL, yL, xR, yR].
func (c Correspondence) Row() [4]float64 {
	return [4]float64{c.Left.X, c.Left.Y, c.Right.X, c.Right.Y}
}

// String implements fmt.Stringer.
func (c Correspondence) String() string {
	return fmt.Sprintf("(%g,%g)->(%g,%g)", c.Left.X, c.Left.Y, c.Right.X, c.Right.Y)
}

// FromRows converts wire rows into correspondences, preserving order.
func FromRows(rows [][4]float64) []Correspondence {
	out := make([]Correspondence, len(rows))
	for i, r := range rows {
		out[i] = NewCorrespondence(r[0], r[1], r[2], r[3])
	}
	return out
}

// ToRows converts correspondences into wire rows, preserving order.
func ToRows(cs []Correspondence) [][4]float64 {
	out := make([][4]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Row()
	}
	return out
}

// Split partitions correspondences into their left and right points.
func Split(cs []Correspondence) (left, right []r2.Point) {
	left = make([]r2.Point, len(cs))
	right = make([]r2.Point, len(cs))
	for i, c := range cs {
		left[i] = c.Left
		right[i] = c.Right
	}
	return left, right
}
