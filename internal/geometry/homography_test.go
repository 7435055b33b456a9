package geometry

import (
	"encoding/json"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestHomography_MulIdentity(t *testing.T) {
	h := Homography{2, 0.1, 5, -0.2, 1.5, 3, 0.001, 0.002, 1}
	assert.Equal(t, h, h.Mul(Identity()))
	assert.Equal(t, h, Identity().Mul(h))
}

func TestHomography_MulOrder(t *testing.T) {
	scale := Scaling(2, 2, 0, 0)
	shift := Translation(10, 0)

	// shift·scale scales first, then translates.
	p, ok := shift.Mul(scale).Apply(r2.Point{X: 1, Y: 1})
	require.True(t, ok)
	assert.InDelta(t, 12.0, p.X, 1e-12)
	assert.InDelta(t, 2.0, p.Y, 1e-12)

	p, ok = scale.Mul(shift).Apply(r2.Point{X: 1, Y: 1})
	require.True(t, ok)
	assert.InDelta(t, 22.0, p.X, 1e-12)
}

func TestHomography_Inverse(t *testing.T) {
	h := Homography{1.2, 0.05, 30, -0.03, 0.9, -12, 1e-4, -2e-4, 1}
	inv, err := h.Inverse()
	require.NoError(t, err)
	assert.True(t, h.Mul(inv).ApproxEqual(Identity(), 1e-9))
	assert.True(t, inv.Mul(h).ApproxEqual(Identity(), 1e-9))
}

func TestHomography_InverseSingular(t *testing.T) {
	tests := []struct {
		name string
		h    Homography
	}{
		{name: "zero", h: Homography{}},
		{name: "rank one", h: Homography{1, 2, 3, 2, 4, 6, 3, 6, 9}},
		{name: "zero row", h: Homography{1, 0, 0, 0, 1, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.h.Inverse()
			require.ErrorIs(t, err, ErrSingularMatrix)
		})
	}
}

func TestHomography_Normalize(t *testing.T) {
	h := Homography{2, 0, 4, 0, 2, 6, 0, 0, 2}
	n, err := h.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 1.0, n[8])
	assert.Equal(t, Scaling(1, 1, 2, 3), n)

	_, err = Homography{1, 0, 0, 0, 1, 0, 0, 0, 1e-15}.Normalize()
	require.ErrorIs(t, err, ErrZeroPivot)
}

func TestHomography_Apply(t *testing.T) {
	p, ok := Scaling(2, 3, 1, -1).Apply(r2.Point{X: 4, Y: 5})
	require.True(t, ok)
	assert.Equal(t, r2.Point{X: 9, Y: 14}, p)

	// The line x = -1 maps to infinity under this perspective term.
	_, ok = Homography{1, 0, 0, 0, 1, 0, 1, 0, 1}.Apply(r2.Point{X: -1, Y: 7})
	assert.False(t, ok)
}

func TestHomography_DenseRoundTrip(t *testing.T) {
	h := Homography{1, 2, 3, 4, 5, 6, 7, 8, 9}
	d := h.Dense()
	d.Set(0, 0, 100)
	assert.Equal(t, 1.0, h[0], "Dense must not alias the array")
	assert.Equal(t, 100.0, FromDense(d)[0])
	assert.Equal(t, 6.0, h.At(1, 2))
}

func TestHomography_JSON(t *testing.T) {
	h := Homography{1, 2, 3, 4, 5, 6, 7, 8, 9}
	data, err := json.Marshal(h)
	require.NoError(t, err)
	assert.JSONEq(t, `[[1,2,3],[4,5,6],[7,8,9]]`, string(data))

	var flat Homography
	require.NoError(t, json.Unmarshal([]byte(`[1,2,3,4,5,6,7,8,9]`), &flat))
	assert.Equal(t, h, flat)

	var bad Homography
	require.Error(t, json.Unmarshal([]byte(`[[1,2],[3,4]]`), &bad))
}

func TestHomography_YAML(t *testing.T) {
	var doc struct {
		H Homography `yaml:"h"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("h:\n  - [2, 0, 1]\n  - [0, 2, 1]\n  - [0, 0, 1]\n"), &doc))
	assert.Equal(t, Scaling(2, 2, 1, 1), doc.H)

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	var back struct {
		H Homography `yaml:"h"`
	}
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, doc.H, back.H)
}

func TestCorrespondenceRows(t *testing.T) {
	rows := [][4]float64{{1, 2, 3, 4}, {5, 6, 7, 8}}
	cs := FromRows(rows)
	require.Len(t, cs, 2)
	assert.Equal(t, r2.Point{X: 5, Y: 6}, cs[1].Left)
	assert.Equal(t, rows, ToRows(cs))

	left, right := Split(cs)
	assert.Equal(t, []r2.Point{{X: 1, Y: 2}, {X: 5, Y: 6}}, left)
	assert.Equal(t, []r2.Point{{X: 3, Y: 4}, {X: 7, Y: 8}}, right)
}
