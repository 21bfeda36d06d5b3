package main

import (
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	exportRun string
	exportOut string
)

var exportXLSXCmd = &cobra.Command{
	Use:   "export:xlsx",
	Short: "Write a stored run as a workbook with purchases, ABC curve and price history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		runID := exportRun
		if runID == "" {
			if runID, err = e.processor.LastRunID(); err != nil {
				return err
			}
			if runID == "" {
				return eris.New("no runs stored yet, run scan first")
			}
		}
		out := exportOut
		if out == "" {
			out = filepath.Join(cfg.OutputDir, runID+".xlsx")
		}

		n, err := e.processor.ExportRun(runID, out)
		if err != nil {
			return err
		}
		fmt.Printf("exported %d records of run %s to %s\n", n, runID, out)
		return nil
	},
}

func init() {
	exportXLSXCmd.Flags().StringVar(&exportRun, "run", "", "run id (default: last run)")
	exportXLSXCmd.Flags().StringVar(&exportOut, "out", "", "output path, .xlsx or .csv (default: OUTPUT_DIR/<run>.xlsx)")
	rootCmd.AddCommand(exportXLSXCmd)
}
