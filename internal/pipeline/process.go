package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"nfce/internal"
	"nfce/internal/config"
	"nfce/internal/storage"
)

const metaLastRun = "last_run_id"

type ProcessingService struct {
	db      *storage.DB
	cfg     config.Config
	scanner *Scanner
	log     *zap.Logger
}

func NewProcessingService(db *storage.DB, cfg config.Config, scanner *Scanner, log *zap.Logger) *ProcessingService {
	if log == nil {
		log = zap.L()
	}
	return &ProcessingService{db: db, cfg: cfg, scanner: scanner, log: log}
}

type RunResult struct {
	RunID    string
	Scan     ScanResult
	Exported int
	Output   string
}

// Run scans every root in order, writes the consolidated dataset to output
// and records the run. Records from later roots follow earlier ones.
func (s *ProcessingService) Run(ctx context.Context, output string, roots ...string) (RunResult, error) {
	if len(roots) == 0 {
		roots = []string{s.cfg.ReceiptsDir}
	}
	started := time.Now().UTC()

	var merged ScanResult
	for _, root := range roots {
		res, err := s.scanner.Scan(ctx, root)
		if err != nil {
			return RunResult{}, err
		}
		merged.Records = append(merged.Records, res.Records...)
		merged.Documents = append(merged.Documents, res.Documents...)
	}
	merged.Root = strings.Join(roots, ",")

	return s.finish(merged, started, output)
}

// RunArchive is Run for a single container, failing if it cannot be opened.
func (s *ProcessingService) RunArchive(ctx context.Context, output, path string) (RunResult, error) {
	started := time.Now().UTC()
	res, err := s.scanner.ScanArchive(ctx, path)
	if err != nil {
		return RunResult{}, err
	}
	return s.finish(res, started, output)
}

func (s *ProcessingService) finish(scan ScanResult, started time.Time, output string) (RunResult, error) {
	if output == "" {
		output = s.cfg.DatasetPath()
	}
	n, err := ExportCSV(scan.Records, output)
	if err != nil {
		return RunResult{}, err
	}
	if n == 0 {
		s.log.Warn("no records extracted, dataset not written", zap.String("root", scan.Root))
		output = ""
	}

	run := internal.RunRow{
		ID:         uuid.NewString(),
		Root:       scan.Root,
		StartedAt:  started.Format(time.RFC3339Nano),
		FinishedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Documents:  len(scan.Documents),
		Failed:     scan.Failed(),
		Records:    len(scan.Records),
		Output:     output,
	}
	if err := s.db.SaveRun(run, scan.Documents, scan.Records); err != nil {
		return RunResult{}, err
	}
	if err := s.db.SetMetadata(metaLastRun, run.ID); err != nil {
		return RunResult{}, eris.Wrap(err, "pipeline: remember last run")
	}

	s.log.Info("run saved",
		zap.String("run", run.ID),
		zap.Int("documents", run.Documents),
		zap.Int("failed", run.Failed),
		zap.Int("records", run.Records),
		zap.String("output", output),
	)
	return RunResult{RunID: run.ID, Scan: scan, Exported: n, Output: output}, nil
}

// LastRunID returns the most recent run, or "" when nothing was saved yet.
func (s *ProcessingService) LastRunID() (string, error) {
	v, err := s.db.GetMetadata(metaLastRun)
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}

// ExportRun writes a stored run again and makes the new file the run's
// output. The format follows the extension: .xlsx gives the workbook,
// anything else the CSV dataset.
func (s *ProcessingService) ExportRun(runID, path string) (int, error) {
	run, err := s.db.GetRun(runID)
	if err != nil {
		return 0, err
	}
	if run == nil {
		return 0, eris.Errorf("pipeline: run not found: %s", runID)
	}
	records, err := s.db.GetRunRecords(runID)
	if err != nil {
		return 0, err
	}

	n := len(records)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		err = ExportXLSX(records, path)
	} else {
		n, err = ExportCSV(records, path)
	}
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if err := s.db.SetRunOutput(runID, path); err != nil {
			return 0, eris.Wrap(err, "pipeline: record export path")
		}
	}
	return n, nil
}

// MarkMailScanned flags fetched messages as scanned after a run covered
// the folder they were stored in.
func (s *ProcessingService) MarkMailScanned(limit int) (int, error) {
	pending, err := s.db.ListEmailsByStatus(storage.EmailFetched, limit)
	if err != nil {
		return 0, err
	}
	for _, email := range pending {
		if err := s.db.UpdateEmailStatus(email.ID, storage.EmailScanned); err != nil {
			return 0, err
		}
	}
	return len(pending), nil
}
