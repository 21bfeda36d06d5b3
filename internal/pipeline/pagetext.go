package pipeline

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"

	"nfce/internal"
	"nfce/internal/config"
	"nfce/internal/util"
)

// PageTextExtractor turns a document blob into per-page text. Pages without
// extractable text come back as "".
type PageTextExtractor interface {
	PageTexts(ctx context.Context, content []byte) ([]string, error)
}

// PDFTextExtractor reads page text with the pure Go PDF reader.
type PDFTextExtractor struct{}

func (PDFTextExtractor) PageTexts(_ context.Context, content []byte) (pages []string, err error) {
	// The reader panics on some malformed cross reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = eris.Errorf("pdf: reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, eris.Wrap(err, "pdf: open")
	}

	pages = make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// PdfToTextExtractor shells out to poppler's pdftotext, which keeps line
// breaks closer to the printed layout than the native reader.
type PdfToTextExtractor struct {
	binPath string
}

// NewPdfToTextExtractor creates the extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToTextExtractor(binPath string) *PdfToTextExtractor {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToTextExtractor{binPath: binPath}
}

func (p *PdfToTextExtractor) PageTexts(ctx context.Context, content []byte) ([]string, error) {
	tmp, err := os.CreateTemp("", "nfce-*.pdf")
	if err != nil {
		return nil, eris.Wrap(err, "pdftotext: temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return nil, eris.Wrap(err, "pdftotext: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return nil, eris.Wrap(err, "pdftotext: close temp file")
	}

	cmd := exec.CommandContext(ctx, p.binPath, "-enc", "UTF-8", tmp.Name(), "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "pdftotext: failed: %s", strings.TrimSpace(stderr.String()))
	}
	return splitFormFeeds(stdout.String()), nil
}

// splitFormFeeds splits pdftotext output, which ends every page with \f.
func splitFormFeeds(out string) []string {
	pages := strings.Split(out, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}

// HTMLTextExtractor reads a saved NFC-e consultation page. The whole page is
// one "page" whose text nodes are joined in document order.
type HTMLTextExtractor struct{}

func (HTMLTextExtractor) PageTexts(_ context.Context, content []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, eris.Wrap(err, "html: parse")
	}
	doc.Find("script,style,noscript,head").Remove()

	parts := []string{}
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, node *goquery.Selection) {
			if goquery.NodeName(node) == "#text" {
				if text := util.NormalizeSpaces(node.Text()); text != "" {
					parts = append(parts, text)
				}
				return
			}
			walk(node)
		})
	}
	walk(doc.Selection)

	return []string{strings.Join(parts, "\n")}, nil
}

// TextExtractors picks the page text capability for each document kind.
type TextExtractors struct {
	PDF  PageTextExtractor
	HTML PageTextExtractor
}

func NewTextExtractors(cfg config.Config) (TextExtractors, error) {
	out := TextExtractors{HTML: HTMLTextExtractor{}}
	switch cfg.PDFTextProvider {
	case "", "native":
		out.PDF = PDFTextExtractor{}
	case "pdftotext":
		out.PDF = NewPdfToTextExtractor(cfg.PdfToTextPath)
	default:
		return TextExtractors{}, eris.Errorf("pipeline: unknown pdf text provider %q", cfg.PDFTextProvider)
	}
	return out, nil
}

func (t TextExtractors) For(kind internal.DocumentKind) (PageTextExtractor, error) {
	switch kind {
	case internal.KindPDF:
		if t.PDF != nil {
			return t.PDF, nil
		}
	case internal.KindHTML:
		if t.HTML != nil {
			return t.HTML, nil
		}
	}
	return nil, eris.Errorf("pipeline: no text extractor for %q", kind)
}
