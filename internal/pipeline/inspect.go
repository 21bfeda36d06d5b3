package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"nfce/internal"
	"nfce/internal/util"
)

// Inspection is a diagnostic view of one document: what text the reader
// produced and how the item grammar sees it.
type Inspection struct {
	Source   string
	Kind     internal.DocumentKind
	Pages    []string
	Layout   LayoutResult
	Date     internal.ReceiptDate
	Captures []internal.RawCapture
	Grammar  string
}

func (i Inspection) FirstCapture() (internal.RawCapture, bool) {
	if len(i.Captures) == 0 {
		return internal.RawCapture{}, false
	}
	return i.Captures[0], true
}

func Inspect(ctx context.Context, texts TextExtractors, path string) (Inspection, error) {
	kind, ok := DocumentKindOf(path)
	if !ok {
		return Inspection{}, eris.Errorf("pipeline: %s is not a document", filepath.Base(path))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Inspection{}, eris.Wrapf(err, "pipeline: read %s", path)
	}
	extractor, err := texts.For(kind)
	if err != nil {
		return Inspection{}, err
	}
	pages, err := extractor.PageTexts(ctx, content)
	if err != nil {
		return Inspection{}, err
	}

	full := strings.Join(pages, "")
	match := MatchDocument(util.Linearize(full))
	return Inspection{
		Source:   filepath.Base(path),
		Kind:     kind,
		Pages:    pages,
		Layout:   DetectLayout(full),
		Date:     FindReceiptDate(full),
		Captures: match.Captures,
		Grammar:  match.Grammar,
	}, nil
}
