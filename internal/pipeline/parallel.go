package pipeline

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/pano/internal/geometry"
)

// ParallelConfig holds configuration for concurrent pair estimation.
type ParallelConfig struct {
	MaxWorkers int // Number of pairs estimated at once (0 = runtime.NumCPU())
}

// DefaultParallelConfig returns sensible defaults for parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type pairJob struct {
	index int
	set   []geometry.Correspondence
}

type pairOutcome struct {
	index  int
	result *PairResult
	err    error
}

// estimatePairs runs EstimatePair for every set on a worker pool and
// returns results in pair order. The first failure cancels the remaining
// work; the reported error is the failing pair with the lowest index.
func (p *Pipeline) estimatePairs(ctx context.Context, sets [][]geometry.Correspondence) ([]PairResult, error) {
	total := len(sets)
	p.progress.OnStart(total)
	defer p.progress.OnComplete()
	if total == 0 {
		return nil, nil
	}

	workers := p.cfg.Parallel.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, total)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan pairJob, total)
	outcomes := make(chan pairOutcome, total)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go p.worker(ctx, jobs, outcomes, &wg)
	}

	for i, set := range sets {
		jobs <- pairJob{index: i, set: set}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	results := make([]PairResult, total)
	errs := make(map[int]error)
	processed := 0
	for o := range outcomes {
		processed++
		if o.err != nil {
			errs[o.index] = o.err
			if !errors.Is(o.err, context.Canceled) {
				p.progress.OnError(o.index, o.err)
				p.logger.Warn("pair estimation failed", "pair", o.index, "error", o.err)
			}
			cancel()
			continue
		}
		results[o.index] = *o.result
		p.progress.OnProgress(processed, total)
		p.logger.Debug("pair estimated",
			"pair", o.index,
			"inliers", o.result.Inliers,
			"total", o.result.Total,
			"iterations", o.result.Iterations,
			"duration_ms", o.result.DurationMs)
		if p.listener != nil {
			p.listener(*o.result)
		}
	}

	if err := firstPairError(errs, total); err != nil {
		return nil, err
	}
	// Workers stop taking jobs once ctx is done, so a parent cancellation
	// can leave pairs unprocessed without any error recorded.
	if processed < total {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// firstPairError prefers real failures over the cancellations they caused.
func firstPairError(errs map[int]error, total int) error {
	var canceled error
	for i := range total {
		err, ok := errs[i]
		if !ok {
			continue
		}
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return &PairError{Pair: i, Err: err}
		}
		if canceled == nil {
			canceled = err
		}
	}
	return canceled
}

func (p *Pipeline) worker(ctx context.Context, jobs <-chan pairJob, outcomes chan<- pairOutcome, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			res, err := p.EstimatePair(ctx, job.index, job.set)
			outcomes <- pairOutcome{index: job.index, result: res, err: err}
		case <-ctx.Done():
			return
		}
	}
}

// ParallelStats summarizes a run for benchmarking.
type ParallelStats struct {
	Pairs            int           `json:"pairs"`
	WorkerCount      int           `json:"worker_count"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
	AveragePerPair   time.Duration `json:"average_per_pair_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// CalculateParallelStats derives throughput figures from a run.
func CalculateParallelStats(pairs int, duration time.Duration, workers int) ParallelStats {
	stats := ParallelStats{Pairs: pairs, WorkerCount: workers, TotalDuration: duration}
	if pairs > 0 && duration > 0 {
		stats.AveragePerPair = duration / time.Duration(pairs)
		stats.ThroughputPerSec = float64(pairs) / duration.Seconds()
	}
	return stats
}
