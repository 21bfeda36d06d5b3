package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nfce/internal/portal"
)

var portalURLs string

var portalFetchCmd = &cobra.Command{
	Use:   "portal:fetch",
	Short: "Save NFC-e consultation pages into RECEIPTS_DIR",
	RunE: func(cmd *cobra.Command, _ []string) error {
		urls, err := portal.ReadURLList(portalURLs)
		if err != nil {
			return err
		}
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		report, err := portal.NewFetchService(e.db, cfg, zap.L()).FetchURLs(cmd.Context(), urls)
		if err != nil {
			return err
		}
		for u, msg := range report.Failed {
			fmt.Printf("failed %s: %s\n", u, msg)
		}
		fmt.Printf("portal fetch done saved=%d skipped=%d failed=%d\n", len(report.Saved), report.Skipped, len(report.Failed))
		return nil
	},
}

func init() {
	portalFetchCmd.Flags().StringVar(&portalURLs, "urls", "", "file with one URL per line (required)")
	_ = portalFetchCmd.MarkFlagRequired("urls")
	rootCmd.AddCommand(portalFetchCmd)
}
