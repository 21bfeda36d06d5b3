package pipeline

import (
	"regexp"
	"strings"
	"time"

	"nfce/internal"
	"nfce/internal/util"
)

var reReceiptDate = regexp.MustCompile(`(\d{2})/(\d{2})/(\d{2,4})`)

type DocumentResult struct {
	Records   []internal.PurchaseRecord
	Date      internal.ReceiptDate
	Excluded  int
	RuleFired bool
	Layout    LayoutResult
}

func (r DocumentResult) Status() internal.DocumentStatus {
	switch {
	case len(r.Records) > 0:
		return internal.DocumentOK
	case r.RuleFired || r.Layout.Supported:
		return internal.DocumentNoItems
	default:
		return internal.DocumentUnsupportedLayout
	}
}

// DocumentExtractor turns the page texts of one receipt into purchase records.
type DocumentExtractor struct {
	sanitizer NameSanitizer
}

func NewDocumentExtractor(sanitizer NameSanitizer) *DocumentExtractor {
	if sanitizer == nil {
		sanitizer = TrimSanitizer{}
	}
	return &DocumentExtractor{sanitizer: sanitizer}
}

func (e *DocumentExtractor) Extract(pages []string, source string) DocumentResult {
	full := strings.Join(pages, "")
	date := FindReceiptDate(full)

	match := MatchDocument(util.Linearize(full))
	res := DocumentResult{
		Date:      date,
		RuleFired: match.RuleFired,
		Excluded:  match.ExcludedCount(),
		Layout:    DetectLayout(full),
	}

	for _, capture := range match.Included() {
		res.Records = append(res.Records, internal.PurchaseRecord{
			Date:            date,
			Product:         e.sanitizer.Sanitize(capture.Name),
			Quantity:        capture.Quantity,
			Unit:            capture.Unit,
			UnitPrice:       capture.UnitPrice,
			TotalPrice:      capture.TotalPrice,
			ProductCode:     capture.Code,
			SourceReference: source,
		})
	}
	return res
}

// FindReceiptDate returns the first DD/MM/YY or DD/MM/YYYY date in text. A
// first match that is not a real calendar date, or whose year is three
// digits or runs into more digits, yields the unknown date.
func FindReceiptDate(text string) internal.ReceiptDate {
	loc := reReceiptDate.FindStringSubmatchIndex(text)
	if loc == nil {
		return internal.ReceiptDate{}
	}
	if loc[1] < len(text) && isASCIIDigit(rune(text[loc[1]])) {
		return internal.ReceiptDate{}
	}

	year := text[loc[6]:loc[7]]
	var layout string
	switch len(year) {
	case 2:
		layout = "02/01/06"
	case 4:
		layout = "02/01/2006"
	default:
		return internal.ReceiptDate{}
	}
	t, err := time.Parse(layout, text[loc[0]:loc[1]])
	if err != nil {
		return internal.ReceiptDate{}
	}
	return internal.KnownDate(t)
}
