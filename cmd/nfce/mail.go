package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nfce/internal/connectors"
	"nfce/internal/listener"
)

var (
	mailProvider string
	mailLabel    string
	mailMax      int
)

var mailFetchCmd = &cobra.Command{
	Use:   "mail:fetch",
	Short: "Download receipt mail into MAIL_RAW_DIR",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		conn, err := connectors.NewMailConnector(mailProvider, cfg)
		if err != nil {
			return err
		}
		fetch := connectors.NewFetchService(e.db, cfg.RawMailDir, conn, zap.L())
		result, err := fetch.FetchAndStore(cmd.Context(), mailLabel, mailMax)
		if err != nil {
			return err
		}
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", mailProvider, result.Fetched, result.Stored)
		return nil
	},
}

var mailListenCmd = &cobra.Command{
	Use:   "mail:listen",
	Short: "Poll the mailbox and rebuild the dataset when receipts arrive",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		conn, err := connectors.NewMailConnector(cfg.MailListenerProvider, cfg)
		if err != nil {
			return err
		}
		return listener.NewService(e.db, cfg, conn, e.processor, zap.L()).Run(cmd.Context())
	},
}

func init() {
	mailFetchCmd.Flags().StringVar(&mailProvider, "provider", "imap", "gmail|imap")
	mailFetchCmd.Flags().StringVar(&mailLabel, "label", "INBOX", "mailbox or label")
	mailFetchCmd.Flags().IntVar(&mailMax, "max", 50, "max messages")
	rootCmd.AddCommand(mailFetchCmd, mailListenCmd)
}
