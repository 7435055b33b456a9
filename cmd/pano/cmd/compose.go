package cmd

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/pano/internal/pipeline"
	"github.com/MeKo-Tech/pano/internal/sequence"
	"github.com/spf13/cobra"
)

// composeCmd represents the compose command.
var composeCmd = &cobra.Command{
	Use:   "compose <chain-file>",
	Short: "Compose pairwise homographies into a reference frame",
	Long: `Compose a chain of pairwise homographies, where pair k maps image k onto
image k+1, into one transform per image that maps it into the reference
image's frame.

The reference defaults to the document's "reference" field and then to the
image just left of the middle of the sequence.

Examples:
  pano compose chain.json
  pano compose chain.yaml --reference 0 --format text`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no chain file provided")
		}

		cfg := GetConfig()
		format, outputFile := outputSettings(cmd, cfg)

		ref := pipeline.AutoReference
		if cmd.Flags().Changed("reference") {
			ref, _ = cmd.Flags().GetInt("reference")
		}

		doc, err := sequence.LoadChain(args[0])
		if err != nil {
			return err
		}
		res, err := pipeline.ComposeChain(doc, ref)
		if err != nil {
			return fmt.Errorf("composition failed: %w", err)
		}

		out, err := pipeline.Format(res, format)
		if err != nil {
			return err
		}
		return writeOutput(cmd, out, outputFile)
	},
}

func init() {
	rootCmd.AddCommand(composeCmd)
	composeCmd.Flags().Int("reference", pipeline.AutoReference, "reference image index (-1 selects automatically)")
	addOutputFlags(composeCmd, "json, yaml, text, csv")
}
