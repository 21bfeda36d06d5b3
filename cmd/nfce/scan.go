package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nfce/internal"
	"nfce/internal/pipeline"
)

var (
	scanOutput  string
	scanVerbose bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [root...]",
	Short: "Scan receipt folders and write the purchase dataset",
	Long: `Reads every PDF, HTML page, zip archive and .eml message directly
under each root (RECEIPTS_DIR when none is given) and writes the records
of all of them to one CSV dataset.

Examples:
  nfce scan
  nfce scan ./resources/cfs ./data/mail --output compras.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.processor.Run(cmd.Context(), scanOutput, args...)
		if err != nil {
			return err
		}
		printRun(res, scanVerbose)
		return nil
	},
}

var scanArchiveCmd = &cobra.Command{
	Use:   "scan:archive <file>",
	Short: "Scan a single zip archive or .eml message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.processor.RunArchive(cmd.Context(), scanOutput, args[0])
		if err != nil {
			return err
		}
		printRun(res, scanVerbose)
		return nil
	},
}

func printRun(res pipeline.RunResult, verbose bool) {
	if verbose {
		for _, doc := range res.Scan.Documents {
			line := fmt.Sprintf("  %-18s %-40s items=%d excluded=%d date=%s", doc.Status, doc.SourceReference, doc.Items, doc.Excluded, doc.Date)
			if doc.Status == internal.DocumentFailed {
				line += " error=" + doc.Error
			}
			fmt.Println(line)
		}
	}
	output := res.Output
	if output == "" {
		output = "(not written)"
	}
	fmt.Printf("run %s documents=%d failed=%d records=%d output=%s\n",
		res.RunID, len(res.Scan.Documents), res.Scan.Failed(), len(res.Scan.Records), output)
}

func init() {
	for _, c := range []*cobra.Command{scanCmd, scanArchiveCmd} {
		c.Flags().StringVar(&scanOutput, "output", "", "dataset path (default: OUTPUT_DIR/DATASET_FILE)")
		c.Flags().BoolVarP(&scanVerbose, "verbose", "v", false, "print one line per document")
		rootCmd.AddCommand(c)
	}
}
