package benchmark

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"runtime"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/pano/internal/geometry"
	"github.com/MeKo-Tech/pano/internal/ransac"
	"github.com/MeKo-Tech/pano/internal/testutil"
)

// Scenario is one synthetic correspondence set to estimate.
type Scenario struct {
	Name         string
	Points       int
	OutlierRatio float64
	Noise        float64
}

// DefaultScenarios covers easy to hostile outlier ratios on 200 points.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Name: "clean", Points: 200, OutlierRatio: 0.0, Noise: 0.5},
		{Name: "outliers-20", Points: 200, OutlierRatio: 0.2, Noise: 0.5},
		{Name: "outliers-40", Points: 200, OutlierRatio: 0.4, Noise: 0.5},
		{Name: "outliers-60", Points: 200, OutlierRatio: 0.6, Noise: 0.5},
	}
}

// ComparisonResult compares sequential and parallel estimation on a scenario.
type ComparisonResult struct {
	Scenario   Scenario
	Workers    int
	Sequential Measurement
	Parallel   Measurement
	Speedup    float64
	// Inlier ratio of the last sequential run.
	InlierRatio float64
}

// String returns a one-line summary.
func (r ComparisonResult) String() string {
	if r.Sequential.Err != nil || r.Parallel.Err != nil {
		return fmt.Sprintf("%s: sequential error=%v parallel error=%v", r.Scenario.Name, r.Sequential.Err, r.Parallel.Err)
	}
	return fmt.Sprintf("%s (%d pts, %.0f%% outliers): sequential %v, parallel[%d] %v, %.2fx, inliers %.1f%%",
		r.Scenario.Name, r.Scenario.Points, r.Scenario.OutlierRatio*100,
		r.Sequential.PerRun(), r.Workers, r.Parallel.PerRun(), r.Speedup, r.InlierRatio*100)
}

// EstimatorBenchmark compares the sequential and parallel RANSAC search.
type EstimatorBenchmark struct {
	Config    ransac.Config
	Workers   int
	Seed      int64
	Scenarios []Scenario

	results []ComparisonResult
}

// NewEstimatorBenchmark creates a benchmark with default scenarios using
// every CPU for the parallel runs.
func NewEstimatorBenchmark(seed int64) *EstimatorBenchmark {
	return &EstimatorBenchmark{
		Config:    ransac.DefaultConfig(),
		Workers:   runtime.NumCPU(),
		Seed:      seed,
		Scenarios: DefaultScenarios(),
	}
}

// Run benchmarks every scenario for the given number of iterations.
func (b *EstimatorBenchmark) Run(iterations int) []ComparisonResult {
	b.results = make([]ComparisonResult, 0, len(b.Scenarios))
	for i, sc := range b.Scenarios {
		b.results = append(b.results, b.runScenario(sc, b.Seed+int64(i), iterations))
	}
	return b.results
}

// Results returns the last run results.
func (b *EstimatorBenchmark) Results() []ComparisonResult {
	return b.results
}

func (b *EstimatorBenchmark) runScenario(sc Scenario, seed int64, iterations int) ComparisonResult {
	set := generate(sc, seed)
	seq := b.Config
	seq.Workers = 1
	par := b.Config
	par.Workers = max(b.Workers, 1)

	var ratio float64
	sequential := func() error {
		res, err := ransac.New(seq, rand.New(rand.NewSource(seed))).Estimate(set) //nolint:gosec // G404: sampling, not crypto
		if err == nil {
			ratio = res.InlierRatio()
		}
		return err
	}
	parallel := func() error {
		_, err := ransac.New(par, rand.New(rand.NewSource(seed))).Estimate(set) //nolint:gosec // G404: sampling, not crypto
		return err
	}

	// Warmup
	_ = sequential()

	out := ComparisonResult{
		Scenario:   sc,
		Workers:    par.Workers,
		Sequential: Measure("sequential", iterations, sequential),
		Parallel:   Measure("parallel", iterations, parallel),
	}
	out.InlierRatio = ratio
	if p := out.Parallel.PerRun(); p > 0 {
		out.Speedup = float64(out.Sequential.PerRun()) / float64(p)
	}
	return out
}

// generate builds the scenario's correspondence set.
func generate(sc Scenario, seed int64) []geometry.Correspondence {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // G404: synthetic data
	cfg := testutil.DefaultSceneConfig()
	cfg.Outliers = int(float64(sc.Points) * sc.OutlierRatio)
	cfg.Inliers = sc.Points - cfg.Outliers
	cfg.Noise = sc.Noise
	set, _ := testutil.GenerateCorrespondences(rng, testutil.RandomHomography(rng), cfg)
	return set
}

// WriteText writes a report with system information and a summary.
func (b *EstimatorBenchmark) WriteText(w io.Writer) {
	if len(b.results) == 0 {
		_, _ = fmt.Fprintln(w, "No benchmark results available")
		return
	}

	_, _ = fmt.Fprintln(w, strings.Repeat("=", 72))
	_, _ = fmt.Fprintln(w, "Sequential vs parallel RANSAC")
	_, _ = fmt.Fprintln(w, strings.Repeat("=", 72))
	_, _ = fmt.Fprintf(w, "GOOS/GOARCH: %s/%s  NumCPU: %d  Go: %s\n", runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.Version())
	_, _ = fmt.Fprintf(w, "Max iterations: %d  Threshold: %g px  Consensus: %.2f\n\n",
		b.Config.MaxIterations, b.Config.Threshold, b.Config.ConsensusRatio)

	for _, r := range b.results {
		_, _ = fmt.Fprintf(w, "- %s\n", r.String())
	}

	var seqTotal, parTotal float64
	for _, r := range b.results {
		seqTotal += float64(r.Sequential.Elapsed)
		parTotal += float64(r.Parallel.Elapsed)
	}
	if parTotal > 0 {
		_, _ = fmt.Fprintf(w, "\nOverall speedup: %.2fx\n", seqTotal/parTotal)
	}
}

// WriteCSV writes one row per scenario.
func (b *EstimatorBenchmark) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	rows := [][]string{{
		"scenario", "points", "outlier_ratio", "workers", "sequential_ms", "parallel_ms", "speedup", "inlier_ratio", "sequential_allocs_per_run", "parallel_allocs_per_run",
	}}
	for _, r := range b.results {
		rows = append(rows, []string{
			r.Scenario.Name,
			strconv.Itoa(r.Scenario.Points),
			strconv.FormatFloat(r.Scenario.OutlierRatio, 'f', 2, 64),
			strconv.Itoa(r.Workers),
			msString(r.Sequential),
			msString(r.Parallel),
			strconv.FormatFloat(r.Speedup, 'f', 2, 64),
			strconv.FormatFloat(r.InlierRatio, 'f', 3, 64),
			strconv.FormatUint(r.Sequential.AllocsPerRun(), 10),
			strconv.FormatUint(r.Parallel.AllocsPerRun(), 10),
		})
	}
	return cw.WriteAll(rows)
}

func msString(m Measurement) string {
	return strconv.FormatFloat(float64(m.PerRun().Nanoseconds())/1e6, 'f', 3, 64)
}
