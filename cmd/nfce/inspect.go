package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nfce/internal/pipeline"
	"nfce/internal/util"
)

var (
	inspectInput string
	inspectText  bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show how one receipt is read: page text, layout verdict and first item",
	RunE: func(cmd *cobra.Command, _ []string) error {
		texts, err := pipeline.NewTextExtractors(cfg)
		if err != nil {
			return err
		}
		in, err := pipeline.Inspect(cmd.Context(), texts, inspectInput)
		if err != nil {
			return err
		}

		fmt.Printf("%s (%s) pages=%d date=%s\n", in.Source, in.Kind, len(in.Pages), in.Date)
		if inspectText {
			for i, page := range in.Pages {
				fmt.Printf("--- page %d ---\n%s\n", i+1, page)
			}
		}
		fmt.Printf("layout supported=%t score=%.1f reason=%s", in.Layout.Supported, in.Layout.Score, in.Layout.Reason)
		if len(in.Layout.Missing) > 0 {
			fmt.Printf(" missing=%s", strings.Join(in.Layout.Missing, ","))
		}
		fmt.Println()

		c, ok := in.FirstCapture()
		if !ok {
			fmt.Println("no item matched")
			return nil
		}
		fmt.Printf("items=%d grammar=%s first: name=%q code=%s qty=%s unit=%s unit_price=%s total=%s outcome=%s\n",
			len(in.Captures), in.Grammar, c.Name, c.Code, util.FormatNumber(c.Quantity, -1), c.Unit,
			util.FormatNumber(c.UnitPrice, 2), util.FormatNumber(c.TotalPrice, 2), c.Outcome)
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectInput, "input", "", "PDF or HTML receipt (required)")
	inspectCmd.Flags().BoolVar(&inspectText, "text", true, "print the extracted page text")
	_ = inspectCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(inspectCmd)
}
