// Package ransac implements random sample consensus over minimal
// four-point homography solutions.
package ransac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/pano/internal/geometry"
	"github.com/MeKo-Tech/pano/internal/homography"
	"github.com/MeKo-Tech/pano/internal/mempool"
	"golang.org/x/sync/errgroup"
)

// ErrNoConsensus is returned when no sampled hypothesis produced a usable
// homography within the iteration budget.
var ErrNoConsensus = errors.New("no consensus")

// Result is the best hypothesis found by the estimator.
type Result struct {
	Homography geometry.Homography
	Inliers    []geometry.Correspondence // in input order
	Total      int                       // size of the evaluated set
	Iterations int                       // hypotheses sampled, degenerate ones included
	Degenerate int                       // samples rejected by the solver
	Duration   time.Duration
}

// InlierRatio returns the fraction of the set that agrees with the result.
func (r *Result) InlierRatio() float64 {
	if r == nil || r.Total == 0 {
		return 0
	}
	return float64(len(r.Inliers)) / float64(r.Total)
}

// Estimator runs RANSAC with an injected random source.
// An Estimator is not safe for concurrent use since it draws from rng.
type Estimator struct {
	cfg    Config
	rng    *rand.Rand
	logger *slog.Logger
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithLogger sets the logger used for run summaries.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Estimator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an estimator. A nil rng is replaced by a time-seeded source.
func New(cfg Config, rng *rand.Rand, opts ...Option) *Estimator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // G404: sampling, not crypto
	}
	e := &Estimator{cfg: cfg, rng: rng, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the estimator configuration.
func (e *Estimator) Config() Config {
	return e.cfg
}

// Estimate finds the homography with the largest inlier set.
func (e *Estimator) Estimate(set []geometry.Correspondence) (*Result, error) {
	return e.EstimateContext(context.Background(), set)
}

// EstimateContext is Estimate with cancellation between iterations.
func (e *Estimator) EstimateContext(ctx context.Context, set []geometry.Correspondence) (*Result, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if len(set) < homography.SampleSize {
		return nil, fmt.Errorf("%w: need at least %d, got %d",
			homography.ErrInsufficientCorrespondences, homography.SampleSize, len(set))
	}

	start := time.Now()
	var (
		best trial
		err  error
	)
	if e.cfg.Workers > 1 {
		best, err = e.searchParallel(ctx, set)
	} else {
		best, err = e.search(ctx, set, e.rng, e.cfg.MaxIterations, nil)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Debug("ransac finished",
		"total", len(set),
		"inliers", len(best.inliers),
		"iterations", best.iterations,
		"degenerate", best.degenerate,
		"workers", max(e.cfg.Workers, 1))

	if !best.found {
		return nil, fmt.Errorf("%w: %d iterations, %d degenerate samples",
			ErrNoConsensus, best.iterations, best.degenerate)
	}
	return &Result{
		Homography: best.h,
		Inliers:    best.inliers,
		Total:      len(set),
		Iterations: best.iterations,
		Degenerate: best.degenerate,
		Duration:   time.Since(start),
	}, nil
}

// trial accumulates the outcome of one search loop.
type trial struct {
	h          geometry.Homography
	inliers    []geometry.Correspondence
	found      bool
	iterations int
	degenerate int
}

// search runs up to budget iterations. A non-nil stop is shared between
// parallel searches so one reaching consensus ends the others.
func (e *Estimator) search(ctx context.Context, set []geometry.Correspondence, rng *rand.Rand, budget int, stop *atomic.Bool) (trial, error) {
	var best trial
	idx := make([]int, homography.SampleSize)
	sample := make([]geometry.Correspondence, homography.SampleSize)
	target := e.cfg.ConsensusRatio * float64(len(set))
	mask := mempool.GetBool(len(set))
	defer mempool.PutBool(mask)

	for best.iterations < budget {
		if stop != nil && stop.Load() {
			break
		}
		if err := ctx.Err(); err != nil {
			return best, err
		}
		best.iterations++

		e.draw(rng, len(set), idx)
		for i, j := range idx {
			sample[i] = set[j]
		}

		h, err := homography.Solve(sample)
		if err != nil {
			best.degenerate++
			continue
		}

		count := homography.MarkInliers(set, h, e.cfg.Threshold, mask)
		if count > len(best.inliers) {
			best.h = h
			best.inliers = homography.Select(set, mask, count)
			best.found = true
		}

		if float64(len(best.inliers)) > target {
			if stop != nil {
				stop.Store(true)
			}
			break
		}
	}
	return best, nil
}

// searchParallel splits the iteration budget across workers. Worker seeds
// are drawn from the estimator's source before launch, so a run is
// reproducible for a given seed unless an early stop races.
func (e *Estimator) searchParallel(ctx context.Context, set []geometry.Correspondence) (trial, error) {
	workers := min(e.cfg.Workers, e.cfg.MaxIterations)
	seeds := make([]int64, workers)
	for i := range seeds {
		seeds[i] = e.rng.Int63()
	}

	trials := make([]trial, workers)
	var stop atomic.Bool
	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		budget := e.cfg.MaxIterations / workers
		if w < e.cfg.MaxIterations%workers {
			budget++
		}
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seeds[w])) //nolint:gosec // G404: sampling, not crypto
			t, err := e.search(gctx, set, rng, budget, &stop)
			trials[w] = t
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return trial{}, err
	}

	var best trial
	for _, t := range trials {
		best.iterations += t.iterations
		best.degenerate += t.degenerate
		if t.found && len(t.inliers) > len(best.inliers) {
			best.h = t.h
			best.inliers = t.inliers
			best.found = true
		}
	}
	return best, nil
}

// draw fills idx with sample indices in [0, n).
func (e *Estimator) draw(rng *rand.Rand, n int, idx []int) {
	if e.cfg.Sampling != SamplingWithoutReplacement {
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		return
	}
	for i := range idx {
		for {
			j := rng.Intn(n)
			if !seen(idx[:i], j) {
				idx[i] = j
				break
			}
		}
	}
}

func seen(idx []int, j int) bool {
	for _, k := range idx {
		if k == j {
			return true
		}
	}
	return false
}
