package homography

import (
	"math/rand"
	"testing"

	"github.com/MeKo-Tech/pano/internal/geometry"
	"github.com/MeKo-Tech/pano/internal/testutil"
	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var square = []r2.Point{
	{X: 0, Y: 0},
	{X: 100, Y: 0},
	{X: 100, Y: 100},
	{X: 0, Y: 100},
}

func TestSolve_Identity(t *testing.T) {
	h, err := Solve(testutil.ExactCorrespondences(geometry.Identity(), square))
	require.NoError(t, err)
	assert.True(t, h.ApproxEqual(geometry.Identity(), 1e-9), "got %v", h)
}

func TestSolve_RecoversKnownHomography(t *testing.T) {
	tests := []struct {
		name string
		h    geometry.Homography
	}{
		{name: "translation", h: geometry.Translation(25, -40)},
		{name: "scale and translation", h: geometry.Scaling(1.5, 0.8, 12, 7)},
		{name: "perspective", h: geometry.Homography{
			0.9, 0.08, 31.5,
			-0.05, 1.1, -8.25,
			1.5e-4, -8e-5, 1,
		}},
	}
	pts := []r2.Point{{X: 12, Y: 17}, {X: 180, Y: 25}, {X: 160, Y: 150}, {X: 30, Y: 190}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Solve(testutil.ExactCorrespondences(tt.h, pts))
			require.NoError(t, err)
			assert.Less(t, h.MaxAbsDiff(tt.h), 1e-6, "got %v want %v", h, tt.h)
			assert.Equal(t, 1.0, h[8])
		})
	}
}

func TestSolve_WrongCount(t *testing.T) {
	set := testutil.ExactCorrespondences(geometry.Identity(), square)
	for _, n := range []int{0, 3, 5} {
		var in []geometry.Correspondence
		if n <= len(set) {
			in = set[:n]
		} else {
			in = append(append([]geometry.Correspondence{}, set...), set[0])
		}
		_, err := Solve(in)
		require.ErrorIs(t, err, ErrInsufficientCorrespondences, "n=%d", n)
	}
}

func TestSolve_Degenerate(t *testing.T) {
	c := geometry.NewCorrespondence(10, 20, 30, 40)
	d := geometry.NewCorrespondence(50, 60, 70, 90)

	tests := []struct {
		name string
		set  []geometry.Correspondence
	}{
		{
			name: "all identical",
			set:  []geometry.Correspondence{c, c, c, c},
		},
		{
			name: "duplicate indices",
			set:  []geometry.Correspondence{c, d, c, d},
		},
		{
			name: "collinear",
			set: testutil.ExactCorrespondences(geometry.Scaling(2, 2, 5, 5),
				[]r2.Point{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 30}}),
		},
		{
			name: "all zero",
			set:  make([]geometry.Correspondence, 4),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Solve(tt.set)
			require.ErrorIs(t, err, ErrDegenerateSample)
		})
	}
}

func TestSolve_LargeCoordinates(t *testing.T) {
	for _, scale := range []float64{100, 1000, 4000, 8000, 20000} {
		truth := geometry.Homography{
			1.1, 0.05, 30,
			-0.04, 0.95, -20,
			2e-2 / scale, -1e-2 / scale, 1,
		}
		rng := rand.New(rand.NewSource(int64(scale)))
		rejected := 0
		for range 200 {
			pts := make([]r2.Point, SampleSize)
			for i := range pts {
				pts[i] = r2.Point{X: rng.Float64() * scale, Y: rng.Float64() * scale}
			}
			set := testutil.ExactCorrespondences(truth, pts)
			h, err := Solve(set)
			if err != nil {
				rejected++
				continue
			}
			for _, c := range set {
				assert.Less(t, ReprojectionError(c, h), 1e-6*scale, "scale %g", scale)
			}
		}
		assert.Zero(t, rejected, "scale %g", scale)
	}
}

func TestSolve_NearlyCollinearLargeScale(t *testing.T) {
	truth := geometry.Homography{0.98, 0.02, -12000, 0.01, 1.01, 150, 1e-6, -5e-7, 1}
	pts := []r2.Point{
		{X: 0, Y: 0},
		{X: 20000, Y: 0},
		{X: 20000, Y: 20000},
		{X: 10000, Y: 10080},
	}
	set := testutil.ExactCorrespondences(truth, pts)

	h, err := Solve(set)
	require.NoError(t, err)
	assert.Equal(t, 1.0, h[8])
	for _, c := range set {
		assert.Less(t, ReprojectionError(c, h), 1e-3)
	}
	center, _ := truth.Apply(r2.Point{X: 10000, Y: 5000})
	got, _ := h.Apply(r2.Point{X: 10000, Y: 5000})
	assert.Less(t, got.Sub(center).Norm(), 1e-3)
}
