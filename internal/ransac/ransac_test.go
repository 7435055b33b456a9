package ransac

import (
	"context"
	"math/rand"
	"testing"

	"github.com/MeKo-Tech/pano/internal/geometry"
	"github.com/MeKo-Tech/pano/internal/homography"
	"github.com/MeKo-Tech/pano/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func TestEstimate_InsufficientCorrespondences(t *testing.T) {
	est := New(DefaultConfig(), seeded(1))

	_, err := est.Estimate(nil)
	require.ErrorIs(t, err, homography.ErrInsufficientCorrespondences)

	three := []geometry.Correspondence{
		geometry.NewCorrespondence(0, 0, 1, 1),
		geometry.NewCorrespondence(5, 0, 6, 1),
		geometry.NewCorrespondence(0, 5, 1, 6),
	}
	_, err = est.Estimate(three)
	require.ErrorIs(t, err, homography.ErrInsufficientCorrespondences)
}

func TestEstimate_Convergence(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		rng := seeded(seed)
		truth := testutil.RandomHomography(rng)
		set, _ := testutil.GenerateCorrespondences(rng, truth, testutil.DefaultSceneConfig())

		res, err := New(DefaultConfig(), seeded(seed)).Estimate(set)
		require.NoError(t, err, "seed %d", seed)
		assert.GreaterOrEqual(t, res.InlierRatio(), 0.75, "seed %d", seed)
		assert.LessOrEqual(t, res.Iterations, DefaultMaxIterations)
		assert.Equal(t, 1.0, res.Homography[8])
		assert.Equal(t, len(set), res.Total)
	}
}

func TestEstimate_EarlyStopOnCleanData(t *testing.T) {
	rng := seeded(3)
	truth := testutil.RandomHomography(rng)
	cfg := testutil.DefaultSceneConfig()
	cfg.Outliers = 0
	cfg.Noise = 0
	set, _ := testutil.GenerateCorrespondences(rng, truth, cfg)

	res, err := New(DefaultConfig(), seeded(9)).Estimate(set)
	require.NoError(t, err)
	assert.Len(t, res.Inliers, len(set))
	assert.Less(t, res.Iterations, 20, "clean data should reach consensus almost immediately")
	assert.Less(t, homography.RMSE(set, res.Homography), 1e-3)
}

func TestEstimate_AllDegenerate(t *testing.T) {
	c := geometry.NewCorrespondence(3, 4, 5, 6)
	set := []geometry.Correspondence{c, c, c, c, c, c}

	_, err := New(DefaultConfig(), seeded(1)).Estimate(set)
	require.ErrorIs(t, err, ErrNoConsensus)
}

func TestEstimate_Deterministic(t *testing.T) {
	rng := seeded(42)
	set, _ := testutil.GenerateCorrespondences(rng, testutil.RandomHomography(rng), testutil.DefaultSceneConfig())

	a, err := New(DefaultConfig(), seeded(100)).Estimate(set)
	require.NoError(t, err)
	b, err := New(DefaultConfig(), seeded(100)).Estimate(set)
	require.NoError(t, err)

	assert.Equal(t, a.Homography, b.Homography)
	assert.Equal(t, a.Iterations, b.Iterations)
	assert.Equal(t, a.Inliers, b.Inliers)
}

func TestEstimate_InliersPreserveOrder(t *testing.T) {
	rng := seeded(8)
	set, _ := testutil.GenerateCorrespondences(rng, testutil.RandomHomography(rng), testutil.DefaultSceneConfig())

	res, err := New(DefaultConfig(), seeded(8)).Estimate(set)
	require.NoError(t, err)

	pos := make(map[geometry.Correspondence]int, len(set))
	for i, c := range set {
		pos[c] = i
	}
	for i := 1; i < len(res.Inliers); i++ {
		assert.Less(t, pos[res.Inliers[i-1]], pos[res.Inliers[i]])
	}
}

func TestEstimate_WithoutReplacement(t *testing.T) {
	set := []geometry.Correspondence{
		geometry.NewCorrespondence(0, 0, 3, 4),
		geometry.NewCorrespondence(100, 0, 203, 4),
		geometry.NewCorrespondence(100, 100, 203, 204),
		geometry.NewCorrespondence(0, 100, 3, 204),
	}
	cfg := DefaultConfig()
	cfg.Sampling = SamplingWithoutReplacement

	res, err := New(cfg, seeded(5)).Estimate(set)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Degenerate, "four distinct points in general position never degenerate")
	assert.Equal(t, 1, res.Iterations)
	assert.Less(t, res.Homography.MaxAbsDiff(geometry.Scaling(2, 2, 3, 4)), 1e-6)
}

func TestEstimate_Parallel(t *testing.T) {
	rng := seeded(21)
	set, _ := testutil.GenerateCorrespondences(rng, testutil.RandomHomography(rng), testutil.DefaultSceneConfig())

	cfg := DefaultConfig()
	cfg.Workers = 4
	res, err := New(cfg, seeded(21)).Estimate(set)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.InlierRatio(), 0.75)
	assert.LessOrEqual(t, res.Iterations, cfg.MaxIterations)
}

func TestEstimate_ParallelAllDegenerate(t *testing.T) {
	c := geometry.NewCorrespondence(1, 1, 2, 2)
	cfg := DefaultConfig()
	cfg.Workers = 3
	cfg.MaxIterations = 10

	_, err := New(cfg, seeded(1)).Estimate([]geometry.Correspondence{c, c, c, c})
	require.ErrorIs(t, err, ErrNoConsensus)
}

func TestEstimate_Cancelled(t *testing.T) {
	rng := seeded(2)
	set, _ := testutil.GenerateCorrespondences(rng, testutil.RandomHomography(rng), testutil.DefaultSceneConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(DefaultConfig(), seeded(2)).EstimateContext(ctx, set)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEstimate_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIterations = 0
	_, err := New(cfg, seeded(1)).Estimate(make([]geometry.Correspondence, 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max iterations")
}

func TestResult_InlierRatio(t *testing.T) {
	var nilResult *Result
	assert.Equal(t, 0.0, nilResult.InlierRatio())
	r := &Result{Inliers: make([]geometry.Correspondence, 3), Total: 4}
	assert.InDelta(t, 0.75, r.InlierRatio(), 1e-12)
}

func TestNew_NilRNG(t *testing.T) {
	est := New(DefaultConfig(), nil)
	require.NotNil(t, est.rng)
	assert.Equal(t, DefaultConfig(), est.Config())
}
