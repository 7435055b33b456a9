package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/pano/internal/pipeline"
	"github.com/MeKo-Tech/pano/internal/sequence"
	"github.com/spf13/cobra"
)

// estimateCmd represents the estimate command.
var estimateCmd = &cobra.Command{
	Use:   "estimate <pairs-file>",
	Short: "Estimate the homography of one image pair",
	Long: `Estimate the homography mapping the left image of a pair onto the right
image from a correspondence file.

Correspondence files hold [x, y, u, v] rows as CSV, JSON or YAML. CSV files
may start with a header row.

Examples:
  pano estimate pairs.csv
  pano estimate pairs.json --seed 42 --format text
  pano estimate pairs.csv --threshold 3 --iterations 2000`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no correspondence file provided")
		}

		cfg := GetConfig()
		applyEstimatorFlags(cmd, cfg)
		format, outputFile := outputSettings(cmd, cfg)

		set, err := sequence.LoadPairs(args[0])
		if err != nil {
			return err
		}

		pCfg := cfg.ToPipelineConfig()
		if err := pCfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		pl := pipeline.New(pCfg, pipeline.WithLogger(slog.Default()))

		pr, err := pl.EstimatePair(cmd.Context(), 0, set)
		if err != nil {
			return fmt.Errorf("estimation failed: %w", err)
		}

		out, err := pipeline.FormatPair(pr, format)
		if err != nil {
			return err
		}
		return writeOutput(cmd, out, outputFile)
	},
}

func init() {
	rootCmd.AddCommand(estimateCmd)
	addEstimatorFlags(estimateCmd)
	addOutputFlags(estimateCmd, "json, yaml, text, csv")
}
