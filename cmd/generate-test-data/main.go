package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/MeKo-Tech/pano/internal/geometry"
	"github.com/MeKo-Tech/pano/internal/sequence"
	"github.com/MeKo-Tech/pano/internal/testutil"
)

type options struct {
	outDir   string
	count    int
	images   int
	points   int
	outliers float64
	noise    float64
	seed     int64
	pngs     bool
	verbose  bool
}

func main() {
	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var opts options
	flag.StringVar(&opts.outDir, "out", "testdata/sequences", "Output directory, relative to the project root")
	flag.IntVar(&opts.count, "count", 3, "Number of sequences to generate")
	flag.IntVar(&opts.images, "images", 5, "Images per sequence")
	flag.IntVar(&opts.points, "points", 100, "Correspondences per pair")
	flag.Float64Var(&opts.outliers, "outliers", 0.2, "Outlier fraction per pair")
	flag.Float64Var(&opts.noise, "noise", 0.5, "Inlier pixel noise (standard deviation)")
	flag.Int64Var(&opts.seed, "seed", 1, "Random seed")
	flag.BoolVar(&opts.pngs, "pngs", false, "Also write blank PNG frames referenced by the sequences")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose output")
	help := flag.Bool("h", false, "Show help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic sequences with known ground truth.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                      # Three 5-image sequences\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -outliers 0.5 -pngs  # Harder data with image files\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}
	if opts.images < 1 || opts.points < 4 || opts.outliers < 0 || opts.outliers >= 1 {
		slog.Error("Invalid options", "images", opts.images, "points", opts.points, "outliers", opts.outliers)
		os.Exit(2)
	}

	root, err := testutil.ProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	if err := os.Chdir(root); err != nil {
		slog.Error("Failed to change to project root", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting test data generation...", "out", opts.outDir, "count", opts.count)
	if err := generate(opts); err != nil {
		slog.Error("Failed to generate test data", "error", err)
		os.Exit(1)
	}
	slog.Info("Test data generation completed successfully!")
}

func generate(opts options) error {
	if err := testutil.EnsureDir(opts.outDir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	rng := rand.New(rand.NewSource(opts.seed)) //nolint:gosec // G404: synthetic data
	scene := testutil.DefaultSceneConfig()
	scene.Outliers = int(float64(opts.points) * opts.outliers)
	scene.Inliers = opts.points - scene.Outliers
	scene.Noise = opts.noise

	for i := range opts.count {
		name := fmt.Sprintf("sequence_%02d", i+1)
		syn := testutil.GenerateSequence(rng, opts.images, scene)

		images := make([]sequence.Image, syn.Images())
		for j := range images {
			images[j] = sequence.Image{
				Name:   fmt.Sprintf("%s_%02d", name, j),
				Width:  int(scene.Width),
				Height: int(scene.Height),
			}
			if opts.pngs {
				images[j].Path = images[j].Name + ".png"
				if err := writeBlankPNG(filepath.Join(opts.outDir, images[j].Path), images[j].Width, images[j].Height); err != nil {
					return err
				}
			}
		}

		seq := sequence.New(images, syn.Pairs)
		seqPath := filepath.Join(opts.outDir, name+".json")
		if err := sequence.Save(seqPath, seq); err != nil {
			return err
		}
		if err := writeTruth(filepath.Join(opts.outDir, name+".truth.json"), images, syn.Chain); err != nil {
			return err
		}
		if len(syn.Pairs) > 0 {
			if err := writePairCSV(filepath.Join(opts.outDir, name+"_pair0.csv"), syn.Pairs[0]); err != nil {
				return err
			}
		}
		if opts.verbose {
			slog.Info("Wrote sequence", "path", seqPath, "images", syn.Images())
		}
	}

	// A YAML sequence without image metadata covers the other file format.
	yamlSeq := testutil.GenerateSequence(rng, opts.images, scene)
	return sequence.Save(filepath.Join(opts.outDir, "sequence_yaml.yaml"), sequence.New(nil, yamlSeq.Pairs))
}

// writeTruth stores the ground-truth pairwise chain in compose's input format.
func writeTruth(path string, images []sequence.Image, pairs []geometry.Homography) error {
	data, err := json.MarshalIndent(sequence.Chain{Images: images, Pairs: pairs}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func writePairCSV(path string, set []geometry.Correspondence) error {
	f, err := os.Create(path) //nolint:gosec // G304: generated path
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"x", "y", "u", "v"}); err != nil {
		return err
	}
	for _, c := range set {
		row := c.Row()
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = strconv.FormatFloat(v, 'f', 4, 64)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeBlankPNG(path string, w, h int) error {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 32 {
		for x := range w {
			img.SetGray(x, y, color.Gray{Y: 128})
		}
	}
	f, err := os.Create(path) //nolint:gosec // G304: generated path
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
