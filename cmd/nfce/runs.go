package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	runsLimit int
	runsShow  string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs, or the documents of one run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		if runsShow != "" {
			docs, err := e.db.GetRunDocuments(runsShow)
			if err != nil {
				return err
			}
			for _, doc := range docs {
				fmt.Printf("%-18s %-40s items=%d excluded=%d date=%s %s\n",
					doc.Status, doc.SourceReference, doc.Items, doc.Excluded, doc.Date, doc.Error)
			}
			return nil
		}

		runs, err := e.db.ListRuns(runsLimit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Printf("%s %s documents=%d failed=%d records=%d root=%s output=%s\n",
				r.ID, r.StartedAt, r.Documents, r.Failed, r.Records, r.Root, r.Output)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "runs to list")
	runsCmd.Flags().StringVar(&runsShow, "show", "", "print the document reports of this run")
	rootCmd.AddCommand(runsCmd)
}
