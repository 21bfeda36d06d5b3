package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"nfce/internal/config"
	"nfce/internal/connectors"
	"nfce/internal/listener"
	"nfce/internal/pipeline"
	"nfce/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	must(config.InitLogger(cfg))
	defer func() { _ = zap.L().Sync() }()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	conn, err := connectors.NewMailConnector(cfg.MailListenerProvider, cfg)
	must(err)
	scanner, err := pipeline.NewScannerFromConfig(cfg, zap.L())
	must(err)
	processor := pipeline.NewProcessingService(db, cfg, scanner, zap.L())

	svc := listener.NewService(db, cfg, conn, processor, zap.L())
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
