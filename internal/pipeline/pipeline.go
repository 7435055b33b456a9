// Package pipeline estimates every adjacent pair of an image sequence and
// composes the results into per-image transforms into a reference frame.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/MeKo-Tech/pano/internal/chain"
	"github.com/MeKo-Tech/pano/internal/geometry"
	"github.com/MeKo-Tech/pano/internal/homography"
	"github.com/MeKo-Tech/pano/internal/ransac"
	"github.com/MeKo-Tech/pano/internal/sequence"
)

// AutoReference selects chain.DefaultReference for the sequence length.
const AutoReference = -1

// Config holds configuration for the sequence pipeline.
type Config struct {
	Estimator ransac.Config
	// Seed for the per-pair random sources; pair i uses Seed+i.
	// Zero picks a time-based seed that is reported in the result.
	Seed int64
	// Reference overrides the reference image. AutoReference defers to the
	// sequence file and then to chain.DefaultReference.
	Reference int
	Parallel  ParallelConfig
}

// DefaultConfig returns a default pipeline config.
func DefaultConfig() Config {
	return Config{
		Estimator: ransac.DefaultConfig(),
		Reference: AutoReference,
		Parallel:  DefaultParallelConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Estimator.Validate(); err != nil {
		return fmt.Errorf("estimator: %w", err)
	}
	if c.Reference < AutoReference {
		return fmt.Errorf("invalid reference: %d", c.Reference)
	}
	if c.Parallel.MaxWorkers < 0 {
		return fmt.Errorf("invalid max workers: %d", c.Parallel.MaxWorkers)
	}
	return nil
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg  Config
	opts []Option
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithEstimator replaces the estimator configuration.
func (b *Builder) WithEstimator(cfg ransac.Config) *Builder {
	b.cfg.Estimator = cfg
	return b
}

// WithThreshold sets the inlier reprojection threshold in pixels.
func (b *Builder) WithThreshold(px float64) *Builder {
	if px > 0 {
		b.cfg.Estimator.Threshold = px
	}
	return b
}

// WithSeed sets the base seed.
func (b *Builder) WithSeed(seed int64) *Builder {
	b.cfg.Seed = seed
	return b
}

// WithReference pins the reference image.
func (b *Builder) WithReference(ref int) *Builder {
	b.cfg.Reference = ref
	return b
}

// WithWorkers sets how many pairs are estimated concurrently.
func (b *Builder) WithWorkers(n int) *Builder {
	b.cfg.Parallel.MaxWorkers = n
	return b
}

// WithOptions appends pipeline options.
func (b *Builder) WithOptions(opts ...Option) *Builder {
	b.opts = append(b.opts, opts...)
	return b
}

// Config returns the current builder config.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and creates the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	return New(b.cfg, b.opts...), nil
}

// PairListener receives each pair result as soon as it is estimated.
// Calls are made serially from the goroutine running Process.
type PairListener func(PairResult)

// Pipeline runs estimation and composition over sequences.
type Pipeline struct {
	cfg      Config
	seed     int64
	logger   *slog.Logger
	progress ProgressCallback
	listener PairListener
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProgress sets the progress callback.
func WithProgress(cb ProgressCallback) Option {
	return func(p *Pipeline) {
		if cb != nil {
			p.progress = cb
		}
	}
}

// WithPairListener sets a listener for individual pair results.
func WithPairListener(l PairListener) Option {
	return func(p *Pipeline) {
		p.listener = l
	}
}

// New creates a pipeline. The configuration is validated by Process.
func New(cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		seed:     cfg.Seed,
		logger:   slog.Default(),
		progress: NoOpProgressCallback{},
	}
	if p.seed == 0 {
		p.seed = time.Now().UnixNano()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Seed returns the base seed in use.
func (p *Pipeline) Seed() int64 { return p.seed }

// EstimatePair runs the robust estimator on one pair. The pair index
// selects the random source, so the same index and seed reproduce the
// same result.
func (p *Pipeline) EstimatePair(ctx context.Context, index int, set []geometry.Correspondence) (*PairResult, error) {
	seed := p.seed + int64(index)
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // G404: sampling, not crypto
	est := ransac.New(p.cfg.Estimator, rng, ransac.WithLogger(p.logger.With("pair", index)))

	res, err := est.EstimateContext(ctx, set)
	if err != nil {
		return nil, err
	}
	return &PairResult{
		Index:       index,
		Homography:  res.Homography,
		Inliers:     len(res.Inliers),
		Total:       res.Total,
		InlierRatio: res.InlierRatio(),
		RMSE:        homography.RMSE(res.Inliers, res.Homography),
		Iterations:  res.Iterations,
		Degenerate:  res.Degenerate,
		Seed:        seed,
		DurationMs:  float64(res.Duration.Microseconds()) / 1000,
	}, nil
}

// Process estimates every pair of seq, composes the chain and computes the
// canvas when all image sizes are known.
func (p *Pipeline) Process(ctx context.Context, seq *sequence.Sequence) (*Result, error) {
	if seq == nil {
		return nil, errors.New("nil sequence")
	}
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	sets, err := seq.Sets()
	if err != nil {
		return nil, err
	}

	n := seq.Len()
	ref := p.resolveReference(seq, n)
	if err := chain.ValidateReference(n, ref); err != nil {
		return nil, err
	}

	start := time.Now()
	pairs, err := p.estimatePairs(ctx, sets)
	if err != nil {
		return nil, err
	}
	estimated := time.Now()

	hs := make([]geometry.Homography, len(pairs))
	for i, pr := range pairs {
		hs[i] = pr.Homography
	}
	transforms, err := chain.Compose(hs, ref)
	if err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}

	res := &Result{
		Images:     n,
		Reference:  ref,
		Seed:       p.seed,
		Pairs:      pairs,
		Transforms: make([]ImageTransform, n),
	}
	for i, h := range transforms {
		res.Transforms[i] = ImageTransform{Index: i, Homography: h}
		if i < len(seq.Images) {
			res.Transforms[i].Name = seq.Images[i].Name
		}
	}
	if allSized(seq.Images) {
		canvas, err := ComputeCanvas(seq.Images, transforms)
		if err != nil {
			return nil, err
		}
		res.Canvas = canvas
	}

	done := time.Now()
	res.Processing.EstimationNs = estimated.Sub(start).Nanoseconds()
	res.Processing.CompositionNs = done.Sub(estimated).Nanoseconds()
	res.Processing.TotalNs = done.Sub(start).Nanoseconds()

	p.logger.Info("sequence processed",
		"images", n,
		"reference", ref,
		"duration", done.Sub(start).Round(time.Microsecond))
	return res, nil
}

func (p *Pipeline) resolveReference(seq *sequence.Sequence, n int) int {
	switch {
	case p.cfg.Reference != AutoReference:
		return p.cfg.Reference
	case seq.Reference != nil:
		return *seq.Reference
	default:
		return chain.DefaultReference(n)
	}
}
