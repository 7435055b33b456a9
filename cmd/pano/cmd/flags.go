package cmd

import (
	"fmt"
	"os"

	"github.com/MeKo-Tech/pano/internal/config"
	"github.com/spf13/cobra"
)

const (
	outputFormatJSON = "json"
	outputFormatYAML = "yaml"
	outputFormatCSV  = "csv"
	outputFormatText = "text"
)

// addEstimatorFlags registers the RANSAC overrides shared by estimate, run,
// batch and serve.
func addEstimatorFlags(cmd *cobra.Command) {
	cmd.Flags().Int("iterations", 0, "maximum RANSAC iterations (default from config)")
	cmd.Flags().Float64("threshold", 0, "inlier reprojection threshold in pixels (default from config)")
	cmd.Flags().Float64("consensus", 0, "stop once inliers exceed this fraction of the set (default from config)")
	cmd.Flags().String("sampling", "", "sample index strategy: replacement or unique")
	cmd.Flags().Int("ransac-workers", 0, "parallel workers per RANSAC run")
	cmd.Flags().Int64("seed", 0, "base random seed (0 picks a time based seed)")
}

// applyEstimatorFlags copies explicitly set estimator flags into cfg.
func applyEstimatorFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("iterations") {
		cfg.Estimator.MaxIterations, _ = cmd.Flags().GetInt("iterations")
	}
	if cmd.Flags().Changed("threshold") {
		cfg.Estimator.InlierThreshold, _ = cmd.Flags().GetFloat64("threshold")
	}
	if cmd.Flags().Changed("consensus") {
		cfg.Estimator.ConsensusRatio, _ = cmd.Flags().GetFloat64("consensus")
	}
	if cmd.Flags().Changed("sampling") {
		cfg.Estimator.Sampling, _ = cmd.Flags().GetString("sampling")
	}
	if cmd.Flags().Changed("ransac-workers") {
		cfg.Estimator.Workers, _ = cmd.Flags().GetInt("ransac-workers")
	}
	if cmd.Flags().Changed("seed") {
		cfg.Estimator.Seed, _ = cmd.Flags().GetInt64("seed")
	}
}

// addOutputFlags registers --format and --output.
func addOutputFlags(cmd *cobra.Command, formats string) {
	cmd.Flags().StringP("format", "f", "", "output format: "+formats+" (default from config)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
}

// outputSettings resolves the format and output file from config and flags.
func outputSettings(cmd *cobra.Command, cfg *config.Config) (format, file string) {
	format, file = cfg.Output.Format, cfg.Output.File
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
	}
	if cmd.Flags().Changed("output") {
		file, _ = cmd.Flags().GetString("output")
	}
	if format == "" {
		format = outputFormatJSON
	}
	return format, file
}

// writeOutput prints content to stdout or writes it to file.
func writeOutput(cmd *cobra.Command, content, file string) error {
	if file == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), content)
		return err
	}
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
