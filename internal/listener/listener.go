package listener

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"nfce/internal/config"
	"nfce/internal/connectors"
	"nfce/internal/pipeline"
	"nfce/internal/storage"
)

// Service polls a mailbox, stores receipt messages next to the receipts and
// rebuilds the dataset after every cycle that stored something.
type Service struct {
	cfg       config.Config
	fetch     *connectors.FetchService
	processor *pipeline.ProcessingService
	log       *zap.Logger
}

type CycleResult struct {
	Fetched  int
	Stored   int
	Scanned  int
	RunID    string
	Workbook string
}

func NewService(db *storage.DB, cfg config.Config, connector connectors.MailConnector, processor *pipeline.ProcessingService, log *zap.Logger) *Service {
	if log == nil {
		log = zap.L()
	}
	return &Service{
		cfg:       cfg,
		fetch:     connectors.NewFetchService(db, cfg.RawMailDir, connector, log),
		processor: processor,
		log:       log.With(zap.String("component", "listener")),
	}
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		if _, err := s.RunCycle(ctx); err != nil {
			s.log.Error("listener cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunCycle does one fetch and, when new mail arrived, one full run.
func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	fetched, err := s.fetch.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return CycleResult{}, err
	}
	res := CycleResult{Fetched: fetched.Fetched, Stored: fetched.Stored}
	if fetched.Stored == 0 {
		s.log.Debug("no new mail")
		return res, nil
	}

	run, err := s.processor.Run(ctx, "", s.roots()...)
	if err != nil {
		return res, err
	}
	res.RunID = run.RunID

	scanned, err := s.processor.MarkMailScanned(s.cfg.MailListenerFetchMax + fetched.Stored)
	if err != nil {
		return res, err
	}
	res.Scanned = scanned

	if s.cfg.MailListenerAutoExport && run.Exported > 0 {
		res.Workbook = filepath.Join(s.cfg.OutputDir, "listener", run.RunID+".xlsx")
		if _, err := s.processor.ExportRun(run.RunID, res.Workbook); err != nil {
			return res, err
		}
	}

	s.log.Info("listener cycle done",
		zap.Int("fetched", res.Fetched),
		zap.Int("stored", res.Stored),
		zap.Int("scanned", res.Scanned),
		zap.String("run", res.RunID),
		zap.String("workbook", res.Workbook),
	)
	return res, nil
}

func (s *Service) roots() []string {
	roots := []string{s.cfg.ReceiptsDir}
	if s.cfg.RawMailDir != "" && filepath.Clean(s.cfg.RawMailDir) != filepath.Clean(s.cfg.ReceiptsDir) {
		roots = append(roots, s.cfg.RawMailDir)
	}
	return roots
}
