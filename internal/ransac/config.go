package ransac

import (
	"fmt"

	"github.com/MeKo-Tech/pano/internal/homography"
)

// Sampling selects how the four sample indices are drawn each iteration.
type Sampling string

const (
	// SamplingWithReplacement draws every index independently, so a sample
	// may repeat a correspondence. Such samples are degenerate and are
	// skipped, but still count against the iteration budget.
	SamplingWithReplacement Sampling = "replacement"
	// SamplingWithoutReplacement draws four distinct indices.
	SamplingWithoutReplacement Sampling = "unique"
)

// Defaults for Config.
const (
	DefaultMaxIterations  = 1200
	DefaultConsensusRatio = 0.75
)

// Config holds the estimator parameters.
type Config struct {
	MaxIterations  int      // hard cap on sampled hypotheses
	Threshold      float64  // inlier reprojection threshold in pixels
	ConsensusRatio float64  // stop once inliers exceed this fraction of the set
	Sampling       Sampling // index sampling strategy
	Workers        int      // parallel workers (<= 1 runs sequentially)
}

// DefaultConfig returns the standard estimator parameters.
func DefaultConfig() Config {
	return Config{
		MaxIterations:  DefaultMaxIterations,
		Threshold:      homography.DefaultInlierThreshold,
		ConsensusRatio: DefaultConsensusRatio,
		Sampling:       SamplingWithReplacement,
		Workers:        1,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("invalid max iterations: %d (must be positive)", c.MaxIterations)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("invalid inlier threshold: %g (must be positive)", c.Threshold)
	}
	if c.ConsensusRatio <= 0 || c.ConsensusRatio > 1 {
		return fmt.Errorf("invalid consensus ratio: %g (must be in (0, 1])", c.ConsensusRatio)
	}
	switch c.Sampling {
	case SamplingWithReplacement, SamplingWithoutReplacement:
	default:
		return fmt.Errorf("invalid sampling mode: %q (must be %q or %q)",
			c.Sampling, SamplingWithReplacement, SamplingWithoutReplacement)
	}
	if c.Workers < 0 {
		return fmt.Errorf("invalid workers: %d (must not be negative)", c.Workers)
	}
	return nil
}
