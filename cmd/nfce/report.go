package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"nfce/internal/report"
	"nfce/internal/util"
)

var (
	reportRun     string
	reportSources []string
	reportTop     int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the ABC spend curve of a stored run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		runID := reportRun
		if runID == "" {
			if runID, err = e.processor.LastRunID(); err != nil {
				return err
			}
			if runID == "" {
				return eris.New("no runs stored yet, run scan first")
			}
		}
		records, err := e.db.GetRunRecords(runID)
		if err != nil {
			return err
		}
		records = report.FilterSources(records, reportSources)

		entries := report.ClassifyABC(records)
		summary := report.Summarize(entries)
		fmt.Printf("run %s records=%d products=%d spend=%s class_a=%d (%s%%)\n",
			runID, len(records), summary.Products, util.FormatNumber(summary.TotalSpend, 2),
			summary.ClassA, util.FormatNumber(summary.ClassAShare, 1))

		for _, line := range abcLines(entries, report.PriceHistory(records), reportTop) {
			fmt.Println(line)
		}
		return nil
	},
}

// abcLines renders the curve, one product per line, with the average unit
// price over the dated purchases ("-" when none is dated).
func abcLines(entries []report.ABCEntry, points []report.PricePoint, top int) []string {
	out := make([]string, 0, len(entries))
	for i, entry := range entries {
		if top > 0 && i >= top {
			break
		}
		avg := "-"
		if v, ok := report.AveragePrice(points, entry.Product); ok {
			avg = util.FormatNumber(v, 2)
		}
		out = append(out, fmt.Sprintf("  %s %-40s %12s %6s%% %6s%% avg_unit=%s", entry.Class, entry.Product,
			util.FormatNumber(entry.Total, 2), util.FormatNumber(entry.Share, 1), util.FormatNumber(entry.Cumulative, 1), avg))
	}
	return out
}

func init() {
	reportCmd.Flags().StringVar(&reportRun, "run", "", "run id (default: last run)")
	reportCmd.Flags().StringSliceVar(&reportSources, "source", nil, "keep only records whose source contains one of these")
	reportCmd.Flags().IntVar(&reportTop, "top", 20, "products to list (0 = all)")
	rootCmd.AddCommand(reportCmd)
}
