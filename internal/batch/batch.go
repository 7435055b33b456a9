// Package batch processes many sequence files with a shared pipeline.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MeKo-Tech/pano/internal/pipeline"
)

// ProcessBatch discovers sequence files under paths and processes them.
func ProcessBatch(ctx context.Context, paths []string, config *Config) (*Result, error) {
	files, err := discoverSequenceFiles(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover sequence files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no sequence files found")
	}

	var opts []pipeline.Option
	if config.ShowProgress && !config.Quiet {
		opts = append(opts, pipeline.WithProgress(pipeline.NewConsoleProgressCallback(os.Stderr, "pairs: ")))
	}
	if err := config.Pipeline.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	pl := pipeline.New(config.Pipeline, opts...)

	start := time.Now()
	items, err := processFiles(ctx, pl, files, config)
	res := &Result{
		Items:       items,
		Duration:    time.Since(start),
		WorkerCount: max(config.Workers, 1),
	}
	if err != nil {
		return res, fmt.Errorf("batch processing failed: %w", err)
	}
	return res, nil
}
