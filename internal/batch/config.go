package batch

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/pano/internal/pipeline"
)

// Config holds all configuration for batch processing.
type Config struct {
	Pipeline pipeline.Config

	// Output settings
	Format     string // json, csv or text
	OutputFile string // aggregated output; empty writes to stdout
	OutputDir  string // optional directory for one JSON result per sequence

	// Parallel processing settings
	Workers         int // sequences processed at once
	ContinueOnError bool

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	ShowProgress bool
	Quiet        bool
}

// DefaultConfig returns batch defaults.
func DefaultConfig() Config {
	return Config{
		Pipeline:        pipeline.DefaultConfig(),
		Format:          "text",
		Workers:         4,
		IncludePatterns: []string{"*.json", "*.yaml", "*.yml"},
	}
}

// Item is the outcome for one sequence file.
type Item struct {
	Path   string
	Result *pipeline.Result
	Err    error
}

// Result holds the result of batch processing.
type Result struct {
	Items       []Item
	Duration    time.Duration
	WorkerCount int
}

// Stats summarizes a batch run.
type Stats struct {
	Files      int
	Succeeded  int
	Failed     int
	Pairs      int
	Duration   time.Duration
	AvgPerFile time.Duration
}

// Stats computes aggregate statistics.
func (r *Result) Stats() Stats {
	s := Stats{Files: len(r.Items), Duration: r.Duration}
	for _, it := range r.Items {
		if it.Err != nil || it.Result == nil {
			s.Failed++
			continue
		}
		s.Succeeded++
		s.Pairs += len(it.Result.Pairs)
	}
	if s.Files > 0 {
		s.AvgPerFile = r.Duration / time.Duration(s.Files)
	}
	return s
}

// FormatResults formats the batch processing results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Items, format)
}

// SaveResults writes the formatted results to outputFile, or to w when
// outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
		return nil
	}
	_, _ = fmt.Fprint(w, output)
	return nil
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	s := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Sequence files: %d\n", s.Files)
	_, _ = fmt.Fprintf(w, "  Succeeded: %d\n", s.Succeeded)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "  Pairs estimated: %d\n", s.Pairs)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", s.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per file: %v\n", s.AvgPerFile.Round(time.Millisecond))
}
