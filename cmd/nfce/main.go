package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nfce/internal/config"
	"nfce/internal/pipeline"
	"nfce/internal/storage"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:          "nfce",
	Short:        "Extract purchase line items from NFC-e receipts",
	Long:         "Scans receipt PDFs, zip archives, saved portal pages and mailed receipts, and writes one consolidated purchase dataset.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

// env holds what most commands need: the store and a processing service
// wired from cfg.
type env struct {
	db        *storage.DB
	scanner   *pipeline.Scanner
	processor *pipeline.ProcessingService
}

func openEnv() (*env, error) {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	scanner, err := pipeline.NewScannerFromConfig(cfg, zap.L())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &env{
		db:        db,
		scanner:   scanner,
		processor: pipeline.NewProcessingService(db, cfg, scanner, zap.L()),
	}, nil
}

func (e *env) Close() {
	_ = e.db.Close()
}
