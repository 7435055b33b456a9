package pipeline

import (
	"fmt"

	"github.com/MeKo-Tech/pano/internal/geometry"
)

// PairResult is the estimation outcome for the pair (Index, Index+1).
type PairResult struct {
	Index       int                 `json:"index"              yaml:"index"`
	Homography  geometry.Homography `json:"homography"         yaml:"homography"`
	Inliers     int                 `json:"inliers"            yaml:"inliers"`
	Total       int                 `json:"total"              yaml:"total"`
	InlierRatio float64             `json:"inlier_ratio"       yaml:"inlier_ratio"`
	RMSE        float64             `json:"rmse"               yaml:"rmse"`
	Iterations  int                 `json:"iterations"         yaml:"iterations"`
	Degenerate  int                 `json:"degenerate_samples" yaml:"degenerate_samples"`
	Seed        int64               `json:"seed"               yaml:"seed"`
	DurationMs  float64             `json:"duration_ms"        yaml:"duration_ms"`
}

// ImageTransform maps one image into the reference frame.
type ImageTransform struct {
	Index      int                 `json:"index"          yaml:"index"`
	Name       string              `json:"name,omitempty" yaml:"name,omitempty"`
	Homography geometry.Homography `json:"homography"     yaml:"homography"`
}

// Result is the output of processing a whole sequence.
type Result struct {
	Images     int              `json:"images"           yaml:"images"`
	Reference  int              `json:"reference"        yaml:"reference"`
	Seed       int64            `json:"seed"             yaml:"seed"`
	Pairs      []PairResult     `json:"pairs"            yaml:"pairs"`
	Transforms []ImageTransform `json:"transforms"       yaml:"transforms"`
	Canvas     *Canvas          `json:"canvas,omitempty" yaml:"canvas,omitempty"`
	Processing struct {
		EstimationNs  int64 `json:"estimation_ns"  yaml:"estimation_ns"`
		CompositionNs int64 `json:"composition_ns" yaml:"composition_ns"`
		TotalNs       int64 `json:"total_ns"       yaml:"total_ns"`
	} `json:"processing" yaml:"processing"`
}

// Homographies returns the per-image transforms in image order.
func (r *Result) Homographies() []geometry.Homography {
	out := make([]geometry.Homography, len(r.Transforms))
	for i, t := range r.Transforms {
		out[i] = t.Homography
	}
	return out
}

// PairError reports which pair of a sequence failed.
type PairError struct {
	Pair int
	Err  error
}

func (e *PairError) Error() string {
	return fmt.Sprintf("pair %d (images %d-%d): %v", e.Pair, e.Pair, e.Pair+1, e.Err)
}

func (e *PairError) Unwrap() error {
	return e.Err
}
