package portal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"nfce/internal/config"
	"nfce/internal/storage"
	"nfce/internal/util"
)

const metaLastFetch = "portal.last_fetch"

type FetchReport struct {
	Saved   []string
	Skipped int
	Failed  map[string]string
}

// FetchService stores portal pages in the receipts folder, one .html file
// per URL, so the scanner picks them up as documents.
type FetchService struct {
	db     *storage.DB
	client *Client
	cfg    config.Config
	log    *zap.Logger
}

func NewFetchService(db *storage.DB, cfg config.Config, log *zap.Logger) *FetchService {
	if log == nil {
		log = zap.L()
	}
	return &FetchService{db: db, client: NewClient(cfg), cfg: cfg, log: log}
}

// FetchURLs downloads every URL not fetched before. A failing URL is
// reported and does not stop the rest.
func (s *FetchService) FetchURLs(ctx context.Context, urls []string) (FetchReport, error) {
	report := FetchReport{Failed: map[string]string{}}
	if err := os.MkdirAll(s.cfg.ReceiptsDir, 0o755); err != nil {
		return report, eris.Wrapf(err, "portal: create %s", s.cfg.ReceiptsDir)
	}

	for _, u := range urls {
		path := filepath.Join(s.cfg.ReceiptsDir, PageFileName(u))
		if _, err := os.Stat(path); err == nil {
			report.Skipped++
			continue
		}

		body, err := s.client.FetchPage(ctx, u)
		if err != nil {
			report.Failed[u] = err.Error()
			s.log.Error("portal fetch failed", zap.String("url", u), zap.Error(err))
			continue
		}
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return report, eris.Wrapf(err, "portal: write %s", path)
		}
		report.Saved = append(report.Saved, path)
		s.log.Info("portal page saved", zap.String("url", u), zap.String("path", path))
	}

	if err := s.db.SetMetadata(metaLastFetch, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return report, err
	}
	return report, nil
}

// PageFileName derives a stable file name from a page URL.
func PageFileName(pageURL string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(pageURL)))
	return "portal-" + hex.EncodeToString(sum[:8]) + ".html"
}

// ReadURLList reads one URL per line, ignoring blanks and # comments.
func ReadURLList(path string) ([]string, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "portal: read %s", path)
	}

	var out []string
	for _, line := range util.SplitLines(string(blob)) {
		if strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}
