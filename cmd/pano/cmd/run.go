package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/pano/internal/pipeline"
	"github.com/MeKo-Tech/pano/internal/sequence"
	"github.com/spf13/cobra"
)

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run <sequence-file>",
	Short: "Estimate and compose a whole image sequence",
	Long: `Estimate every adjacent pair of a sequence file and compose the results
into per-image transforms into the reference frame. When every image size is
known, either from the file or by probing the image paths, the output also
contains the bounding canvas.

Examples:
  pano run sequence.json
  pano run sequence.yaml --reference 2 --format text
  pano run sequence.json --seed 7 --workers 4 --progress`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no sequence file provided")
		}

		cfg := GetConfig()
		applyEstimatorFlags(cmd, cfg)
		if cmd.Flags().Changed("reference") {
			cfg.Pipeline.Reference, _ = cmd.Flags().GetInt("reference")
		}
		if cmd.Flags().Changed("workers") {
			cfg.Pipeline.MaxWorkers, _ = cmd.Flags().GetInt("workers")
		}
		format, outputFile := outputSettings(cmd, cfg)

		seq, err := sequence.Load(args[0])
		if err != nil {
			return err
		}

		opts := []pipeline.Option{pipeline.WithLogger(slog.Default())}
		if progress, _ := cmd.Flags().GetBool("progress"); progress {
			opts = append(opts, pipeline.WithProgress(pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Estimating pairs")))
		}
		pl, err := pipeline.NewBuilder().
			WithEstimator(cfg.ToEstimatorConfig()).
			WithSeed(cfg.Estimator.Seed).
			WithReference(cfg.Pipeline.Reference).
			WithWorkers(cfg.Pipeline.MaxWorkers).
			WithOptions(opts...).
			Build()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		res, err := pl.Process(cmd.Context(), seq)
		if err != nil {
			return fmt.Errorf("sequence processing failed: %w", err)
		}

		var out string
		if pairsOnly, _ := cmd.Flags().GetBool("pairs-csv"); pairsOnly {
			out, err = pipeline.ToPairsCSV(res)
		} else {
			out, err = pipeline.Format(res, format)
		}
		if err != nil {
			return err
		}
		return writeOutput(cmd, out, outputFile)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addEstimatorFlags(runCmd)
	addOutputFlags(runCmd, "json, yaml, text, csv")
	runCmd.Flags().Int("reference", pipeline.AutoReference, "reference image index (-1 selects automatically)")
	runCmd.Flags().IntP("workers", "w", 0, "pairs estimated concurrently (default from config)")
	runCmd.Flags().Bool("pairs-csv", false, "write per-pair statistics as CSV instead of the full result")
	runCmd.Flags().Bool("progress", false, "show progress on stderr")
}
