package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MeKo-Tech/pano/internal/pipeline"
	"github.com/MeKo-Tech/pano/internal/sequence"
)

// processSingleFile loads one sequence file and runs it through the pipeline.
func processSingleFile(ctx context.Context, pl *pipeline.Pipeline, path, outputDir string) (*pipeline.Result, error) {
	seq, err := sequence.Load(path)
	if err != nil {
		return nil, err
	}

	res, err := pl.Process(ctx, seq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if outputDir != "" {
		if err := saveItem(outputDir, path, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// saveItem writes res next to the other results as <name>.result.json.
func saveItem(outputDir, path string, res *pipeline.Result) error {
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	out, err := pipeline.ToJSON(res)
	if err != nil {
		return err
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + ".result.json"
	return os.WriteFile(filepath.Join(outputDir, name), []byte(out), 0o600)
}

// processFiles runs the files on a worker pool. Without continueOnError
// the first failure cancels the rest and is returned.
func processFiles(ctx context.Context, pl *pipeline.Pipeline, files []string, cfg *Config) ([]Item, error) {
	items := make([]Item, len(files))
	for i, f := range files {
		items[i].Path = f
	}

	workers := max(cfg.Workers, 1)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := processSingleFile(ctx, pl, files[i], cfg.OutputDir)
				items[i].Result, items[i].Err = res, err
				if err == nil {
					continue
				}
				slog.Warn("sequence failed", "file", files[i], "error", err)
				if !cfg.ContinueOnError {
					mu.Lock()
					if firstErr == nil && !errors.Is(err, context.Canceled) {
						firstErr = err
					}
					mu.Unlock()
					cancel()
				}
			}
		}()
	}

	for i := range files {
		select {
		case jobs <- i:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return items, firstErr
	}
	if err := ctx.Err(); err != nil && !cfg.ContinueOnError {
		return items, err
	}
	return items, nil
}
