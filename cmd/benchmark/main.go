package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/MeKo-Tech/pano/internal/benchmark"
)

func main() {
	var (
		iterations = flag.Int("iterations", 5, "Number of iterations per scenario")
		workers    = flag.Int("workers", runtime.NumCPU(), "Workers for the parallel search")
		maxIter    = flag.Int("max-iterations", 1200, "RANSAC iteration budget")
		seed       = flag.Int64("seed", 1, "Seed for synthetic data and sampling")
		outputFile = flag.String("output", "", "Output CSV file for results (optional)")
		verbose    = flag.Bool("verbose", false, "Verbose output")
	)
	flag.Parse()

	fmt.Println("pano sequential vs parallel RANSAC benchmark")
	fmt.Println("============================================")

	b := benchmark.NewEstimatorBenchmark(*seed)
	b.Workers = *workers
	b.Config.MaxIterations = *maxIter
	if err := b.Config.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *verbose {
		for _, sc := range b.Scenarios {
			fmt.Printf("Scenario %s: %d points, %.0f%% outliers\n", sc.Name, sc.Points, sc.OutlierRatio*100)
		}
	}

	fmt.Printf("Running benchmarks with %d iterations per scenario...\n\n", *iterations)
	b.Run(*iterations)
	b.WriteText(os.Stdout)

	if *outputFile != "" {
		if err := saveResultsToFile(*outputFile, b); err != nil {
			log.Printf("Failed to save results to file: %v", err)
		} else {
			fmt.Printf("Results saved to: %s\n", *outputFile)
		}
	}
}

func saveResultsToFile(filename string, b *benchmark.EstimatorBenchmark) error {
	file, err := os.Create(filename) //nolint:gosec // G304: user-provided output path
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()
	return b.WriteCSV(file)
}
