package testutil

import (
	"math/rand"

	"github.com/MeKo-Tech/pano/internal/geometry"
	"github.com/golang/geo/r2"
)

// minOutlierError is the smallest reprojection error a generated outlier is
// allowed to have under the ground-truth homography.
const minOutlierError = 25.0

// SceneConfig controls synthetic correspondence generation.
type SceneConfig struct {
	Width    float64 // image width in pixels
	Height   float64 // image height in pixels
	Inliers  int     // correspondences consistent with the ground truth
	Outliers int     // random correspondences
	Noise    float64 // standard deviation of pixel noise added to inliers
}

// DefaultSceneConfig returns an 80/20 inlier/outlier scene on a 640x480 image.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		Width:    640,
		Height:   480,
		Inliers:  80,
		Outliers: 20,
		Noise:    0.5,
	}
}

// Total returns the number of correspondences a scene generates.
func (c SceneConfig) Total() int {
	return c.Inliers + c.Outliers
}

// RandomHomography returns a well-conditioned homography close to a
// similarity transform, with a mild perspective component.
func RandomHomography(rng *rand.Rand) geometry.Homography {
	return geometry.Homography{
		1 + uniform(rng, -0.15, 0.15), uniform(rng, -0.1, 0.1), uniform(rng, -60, 60),
		uniform(rng, -0.1, 0.1), 1 + uniform(rng, -0.15, 0.15), uniform(rng, -60, 60),
		uniform(rng, -2e-4, 2e-4), uniform(rng, -2e-4, 2e-4), 1,
	}
}

// PanningHomography returns a transform typical of a camera panning right
// across a scene of the given width: content shifts left by roughly 60% of
// the frame with a small vertical drift and perspective.
func PanningHomography(rng *rand.Rand, width float64) geometry.Homography {
	return geometry.Homography{
		1 + uniform(rng, -0.03, 0.03), uniform(rng, -0.02, 0.02), -0.6*width + uniform(rng, -15, 15),
		uniform(rng, -0.02, 0.02), 1 + uniform(rng, -0.03, 0.03), uniform(rng, -10, 10),
		uniform(rng, -5e-5, 5e-5), uniform(rng, -5e-5, 5e-5), 1,
	}
}

// GenerateCorrespondences builds a shuffled correspondence set in which
// cfg.Inliers points obey h (plus noise) and cfg.Outliers points do not.
// The second return value marks which entries are inliers.
func GenerateCorrespondences(rng *rand.Rand, h geometry.Homography, cfg SceneConfig) ([]geometry.Correspondence, []bool) {
	out := make([]geometry.Correspondence, 0, cfg.Total())
	truth := make([]bool, 0, cfg.Total())

	for len(out) < cfg.Inliers {
		left := randomPoint(rng, cfg.Width, cfg.Height)
		right, ok := h.Apply(left)
		if !ok {
			continue
		}
		right.X += rng.NormFloat64() * cfg.Noise
		right.Y += rng.NormFloat64() * cfg.Noise
		out = append(out, geometry.Correspondence{Left: left, Right: right})
		truth = append(truth, true)
	}

	for len(out) < cfg.Total() {
		left := randomPoint(rng, cfg.Width, cfg.Height)
		right := randomPoint(rng, cfg.Width, cfg.Height)
		if projected, ok := h.Apply(left); ok && projected.Sub(right).Norm() < minOutlierError {
			continue
		}
		out = append(out, geometry.Correspondence{Left: left, Right: right})
		truth = append(truth, false)
	}

	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
		truth[i], truth[j] = truth[j], truth[i]
	})
	return out, truth
}

// ExactCorrespondences maps each point through h without noise.
func ExactCorrespondences(h geometry.Homography, points []r2.Point) []geometry.Correspondence {
	out := make([]geometry.Correspondence, 0, len(points))
	for _, p := range points {
		q, ok := h.Apply(p)
		if !ok {
			continue
		}
		out = append(out, geometry.Correspondence{Left: p, Right: q})
	}
	return out
}

// SyntheticSequence is a generated image sequence with known ground truth.
type SyntheticSequence struct {
	Width, Height float64
	Chain         []geometry.Homography       // ground-truth pairwise transforms, len N-1
	Pairs         [][]geometry.Correspondence // one correspondence set per adjacent pair
}

// Images returns the number of images in the sequence.
func (s *SyntheticSequence) Images() int {
	return len(s.Chain) + 1
}

// GenerateSequence builds an N-image panning sequence.
func GenerateSequence(rng *rand.Rand, images int, cfg SceneConfig) *SyntheticSequence {
	seq := &SyntheticSequence{Width: cfg.Width, Height: cfg.Height}
	for range max(images-1, 0) {
		h := PanningHomography(rng, cfg.Width)
		set, _ := GenerateCorrespondences(rng, h, cfg)
		seq.Chain = append(seq.Chain, h)
		seq.Pairs = append(seq.Pairs, set)
	}
	return seq
}

func randomPoint(rng *rand.Rand, w, h float64) r2.Point {
	return r2.Point{X: rng.Float64() * w, Y: rng.Float64() * h}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
