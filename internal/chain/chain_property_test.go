package chain

import (
	"testing"

	"github.com/MeKo-Tech/pano/internal/geometry"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genPair() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(0.5, 2),
		gen.Float64Range(0.5, 2),
		gen.Float64Range(-500, 500),
		gen.Float64Range(-500, 500),
	).Map(func(v []interface{}) geometry.Homography {
		return geometry.Scaling(v[0].(float64), v[1].(float64), v[2].(float64), v[3].(float64))
	})
}

func TestCompose_IdentityAtReferenceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("reference entry is exactly identity", prop.ForAll(
		func(pairs []geometry.Homography, pick int) bool {
			if len(pairs) == 0 {
				return true
			}
			mid := pick % len(pairs)
			out, err := Compose(pairs, mid)
			return err == nil && len(out) == len(pairs)+1 && out[mid].IsIdentity()
		},
		gen.SliceOfN(8, genPair()),
		gen.IntRange(0, 1000),
	))

	properties.Property("entries after the reference undo the chain", prop.ForAll(
		func(pairs []geometry.Homography) bool {
			out, err := Compose(pairs, 0)
			if err != nil {
				return false
			}
			fwd := geometry.Identity()
			for i := 1; i < len(out); i++ {
				fwd = pairs[i-1].Mul(fwd)
				if !out[i].Mul(fwd).ApproxEqual(geometry.Identity(), 1e-6) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(5, genPair()),
	))

	properties.TestingRun(t)
}
