package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"nfce/internal"
	"nfce/internal/config"
)

var ErrRootNotFound = eris.New("receipts root not found")

type ScanResult struct {
	Root      string
	Records   []internal.PurchaseRecord
	Documents []internal.DocumentReport
}

func (r ScanResult) Failed() int {
	n := 0
	for _, d := range r.Documents {
		if d.Status == internal.DocumentFailed {
			n++
		}
	}
	return n
}

// Scanner walks a receipts folder and accumulates records from every
// document it can read. Documents are handled one at a time in name order.
type Scanner struct {
	extractor *DocumentExtractor
	texts     TextExtractors
	log       *zap.Logger
}

func NewScanner(extractor *DocumentExtractor, texts TextExtractors, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.L()
	}
	return &Scanner{extractor: extractor, texts: texts, log: log}
}

// NewScannerFromConfig wires the header sanitizer and text provider from cfg.
func NewScannerFromConfig(cfg config.Config, log *zap.Logger) (*Scanner, error) {
	texts, err := NewTextExtractors(cfg)
	if err != nil {
		return nil, err
	}
	extractor := NewDocumentExtractor(NewHeaderSanitizer(cfg.HeaderSignals, cfg.HeaderState))
	return NewScanner(extractor, texts, log), nil
}

// Scan processes every document and container directly under root. A root
// that is a file is processed on its own. Only a missing root is an error;
// unreadable documents are logged and reported as failed.
func (s *Scanner) Scan(ctx context.Context, root string) (ScanResult, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ScanResult{}, eris.Wrapf(ErrRootNotFound, "pipeline: %s", root)
		}
		return ScanResult{}, eris.Wrapf(err, "pipeline: stat %s", root)
	}

	res := ScanResult{Root: root}
	if !info.IsDir() {
		s.scanEntry(ctx, root, &res)
		return res, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return ScanResult{}, eris.Wrapf(err, "pipeline: read %s", root)
	}
	s.log.Info("scanning receipts", zap.String("root", root), zap.Int("entries", len(entries)))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		s.scanEntry(ctx, filepath.Join(root, entry.Name()), &res)
	}

	s.log.Info("scan finished",
		zap.String("root", root),
		zap.Int("documents", len(res.Documents)),
		zap.Int("failed", res.Failed()),
		zap.Int("records", len(res.Records)),
	)
	return res, nil
}

// ScanArchive processes a single container. Failing to open it is returned;
// member failures are isolated as in Scan.
func (s *Scanner) ScanArchive(ctx context.Context, path string) (ScanResult, error) {
	kind, ok := ContainerKindOf(path)
	if !ok {
		return ScanResult{}, eris.Errorf("pipeline: %s is not a supported archive", filepath.Base(path))
	}
	res := ScanResult{Root: path}
	if err := s.scanContainer(ctx, path, kind, &res); err != nil {
		return ScanResult{}, err
	}
	return res, nil
}

func (s *Scanner) scanEntry(ctx context.Context, path string, res *ScanResult) {
	name := filepath.Base(path)
	if kind, ok := DocumentKindOf(name); ok {
		s.processDocument(ctx, name, kind, func() ([]byte, error) { return os.ReadFile(path) }, res)
		return
	}

	kind, ok := ContainerKindOf(name)
	if !ok {
		return
	}
	if err := s.scanContainer(ctx, path, kind, res); err != nil {
		s.log.Error("container failed", zap.String("source", name), zap.Error(err))
		res.Documents = append(res.Documents, internal.DocumentReport{
			SourceReference: name,
			Status:          internal.DocumentFailed,
			Error:           err.Error(),
		})
	}
}

func (s *Scanner) scanContainer(ctx context.Context, path string, kind internal.ContainerKind, res *ScanResult) error {
	container, err := ContainerFor(kind)
	if err != nil {
		return err
	}
	name := filepath.Base(path)
	s.log.Debug("opening container", zap.String("source", name), zap.String("kind", string(kind)))

	return container.Members(path, func(m Member) {
		s.processDocument(ctx, MemberLabel(name, m.Name), m.Kind, m.Read, res)
	})
}

func (s *Scanner) processDocument(ctx context.Context, label string, kind internal.DocumentKind, read func() ([]byte, error), res *ScanResult) {
	report := internal.DocumentReport{SourceReference: label, Kind: kind}

	doc, err := s.extractDocument(ctx, label, kind, read)
	if err != nil {
		report.Status = internal.DocumentFailed
		report.Error = err.Error()
		res.Documents = append(res.Documents, report)
		s.log.Error("document failed", zap.String("source", label), zap.Error(err))
		return
	}

	report.Status = doc.Status()
	report.Items = len(doc.Records)
	report.Excluded = doc.Excluded
	report.Date = doc.Date
	res.Records = append(res.Records, doc.Records...)
	res.Documents = append(res.Documents, report)

	s.log.Info("document processed",
		zap.String("source", label),
		zap.String("status", string(report.Status)),
		zap.Int("items", report.Items),
		zap.Int("excluded", report.Excluded),
	)
}

func (s *Scanner) extractDocument(ctx context.Context, label string, kind internal.DocumentKind, read func() ([]byte, error)) (doc DocumentResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("pipeline: panic while reading %s: %v", label, r)
		}
	}()

	content, err := read()
	if err != nil {
		return DocumentResult{}, eris.Wrap(err, "pipeline: read document")
	}
	texts, err := s.texts.For(kind)
	if err != nil {
		return DocumentResult{}, err
	}
	pages, err := texts.PageTexts(ctx, content)
	if err != nil {
		return DocumentResult{}, err
	}
	return s.extractor.Extract(pages, label), nil
}
