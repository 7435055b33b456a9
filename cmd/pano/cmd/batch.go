package cmd

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/pano/internal/batch"
	"github.com/MeKo-Tech/pano/internal/config"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command.
var batchCmd = &cobra.Command{
	Use:   "batch [files or directories...]",
	Short: "Process many sequence files",
	Long: `Process multiple sequence files with a shared pipeline. Directories are
scanned for files matching the include patterns.

Examples:
  pano batch sequences/
  pano batch a.json b.yaml --format csv --output results.csv
  pano batch sequences/ --recursive --workers 8 --continue-on-error`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

// configToBatchConfig converts the centralized configuration into a batch
// configuration, applying explicitly set flags on top.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) *batch.Config {
	applyEstimatorFlags(cmd, cfg)
	if cmd.Flags().Changed("reference") {
		cfg.Pipeline.Reference, _ = cmd.Flags().GetInt("reference")
	}

	batchConfig := batch.DefaultConfig()
	batchConfig.Pipeline = cfg.ToPipelineConfig()
	batchConfig.Format, batchConfig.OutputFile = outputSettings(cmd, cfg)

	batchConfig.Workers = cfg.Batch.Workers
	if cmd.Flags().Changed("workers") {
		batchConfig.Workers, _ = cmd.Flags().GetInt("workers")
	}

	batchConfig.OutputDir = cfg.Batch.OutputDir
	if cmd.Flags().Changed("output-dir") {
		batchConfig.OutputDir, _ = cmd.Flags().GetString("output-dir")
	}

	batchConfig.ContinueOnError = cfg.Batch.ContinueOnError
	if cmd.Flags().Changed("continue-on-error") {
		batchConfig.ContinueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}

	batchConfig.Recursive = cfg.Batch.Recursive
	if cmd.Flags().Changed("recursive") {
		batchConfig.Recursive, _ = cmd.Flags().GetBool("recursive")
	}

	if len(cfg.Batch.Include) > 0 {
		batchConfig.IncludePatterns = cfg.Batch.Include
	}
	if cmd.Flags().Changed("include") {
		batchConfig.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	}
	batchConfig.ExcludePatterns = cfg.Batch.Exclude
	if cmd.Flags().Changed("exclude") {
		batchConfig.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	}

	batchConfig.ShowProgress, _ = cmd.Flags().GetBool("progress")
	batchConfig.Quiet, _ = cmd.Flags().GetBool("quiet")

	return &batchConfig
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("no input files or directories provided")
	}

	cfg := GetConfig()
	batchConfig := configToBatchConfig(cfg, cmd)

	if !batchConfig.Quiet {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Processing %d paths...\n", len(args))
	}

	result, err := batch.ProcessBatch(cmd.Context(), args, batchConfig)
	if err != nil {
		return err
	}

	if err := result.SaveResults(cmd.OutOrStdout(), batchConfig.Format, batchConfig.OutputFile, batchConfig.Quiet); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}

	if stats, _ := cmd.Flags().GetBool("stats"); stats && !batchConfig.Quiet {
		result.PrintStats(cmd.ErrOrStderr())
	}
	if s := result.Stats(); s.Failed > 0 {
		return fmt.Errorf("%d of %d sequence files failed", s.Failed, s.Files)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addEstimatorFlags(batchCmd)
	addOutputFlags(batchCmd, "json, csv, text")

	batchCmd.Flags().Int("reference", -1, "reference image index for every sequence (-1 selects automatically)")
	batchCmd.Flags().IntP("workers", "w", 0, "sequence files processed concurrently (default from config)")
	batchCmd.Flags().String("output-dir", "", "directory for one JSON result per sequence file")
	batchCmd.Flags().Bool("continue-on-error", false, "keep going after a sequence fails")

	batchCmd.Flags().BoolP("recursive", "r", false, "recursively scan directories")
	batchCmd.Flags().StringSlice("include", []string{"*.json", "*.yaml", "*.yml"}, "file patterns to include")
	batchCmd.Flags().StringSlice("exclude", []string{}, "file patterns to exclude")

	batchCmd.Flags().Bool("progress", false, "show progress on stderr")
	batchCmd.Flags().Bool("quiet", false, "suppress progress output")
	batchCmd.Flags().Bool("stats", false, "show processing statistics")
}
